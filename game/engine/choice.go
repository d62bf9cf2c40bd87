package engine

import "fmt"

// DialogChoice is an answer to one of the in-game dialogs. The set of
// choices is closed; Choose rejects anything it does not know.
type DialogChoice interface {
	dialogChoice()
}

type (
	// ResumeChoice closes the pause dialog
	ResumeChoice struct{}
	// RetryChoice restarts the current level
	RetryChoice struct{}
	// NextLevelChoice advances after a completed level
	NextLevelChoice struct{}
	// ExitChoice leaves the session
	ExitChoice struct{}
	// HintChoice answers the hint confirmation dialog
	HintChoice struct{ Confirm bool }
)

func (ResumeChoice) dialogChoice()    {}
func (RetryChoice) dialogChoice()     {}
func (NextLevelChoice) dialogChoice() {}
func (ExitChoice) dialogChoice()      {}
func (HintChoice) dialogChoice()      {}

// ParseChoice maps a dialog button value to a choice
func ParseChoice(value string) (DialogChoice, error) {
	switch value {
	case "resume":
		return ResumeChoice{}, nil
	case "retry":
		return RetryChoice{}, nil
	case "next_level":
		return NextLevelChoice{}, nil
	case "exit", "exit_to_main_menu":
		return ExitChoice{}, nil
	case "hint_yes":
		return HintChoice{Confirm: true}, nil
	case "hint_no":
		return HintChoice{Confirm: false}, nil
	}
	return nil, fmt.Errorf("%q: %w", value, ErrUnknownChoice)
}

// Choose dispatches a dialog choice to the matching action
func (e *GameEngine) Choose(choice DialogChoice) error {
	switch c := choice.(type) {
	case ResumeChoice:
		if !e.Resume() {
			return fmt.Errorf("resume from %s: %w", e.state, ErrInvalidTransition)
		}
		return nil
	case RetryChoice:
		return e.Retry()
	case NextLevelChoice:
		return e.NextLevel()
	case ExitChoice:
		e.Exit()
		return nil
	case HintChoice:
		if !e.ConfirmHint(c.Confirm) {
			return fmt.Errorf("confirm hint from %s: %w", e.state, ErrInvalidTransition)
		}
		return nil
	}
	return fmt.Errorf("%T: %w", choice, ErrUnknownChoice)
}
