package navigation

import "emfreader/internal/buttons"

func wake(n *Navigator)      { n.SetMode(Initialization) }
func trigger(n *Navigator)   { n.SetTriggerEvent() }
func stepBack(n *Navigator)  { n.SetMode(n.mode.Prev()) }
func stepAhead(n *Navigator) { n.SetMode(n.mode.Next()) }
func settings(n *Navigator)  { n.enterSettings() }
func saveExit(n *Navigator)  { n.SetMode(ExitAudioSelection) }

// forModes builds a Behavior running h in every listed mode.
func forModes(h func(*Navigator), modes ...Mode) Behavior {
	b := make(Behavior, len(modes))
	for _, m := range modes {
		b[m] = h
	}
	return b
}

func defaultBindings() [buttons.NumChannels]binding {
	hiddenHold := forModes(settings, RingModes()...)
	hiddenHold[SetAudioSelection] = saveExit

	hiddenClick := forModes(wake, GoToSleep, Sleeping, Initialization)
	for m, h := range forModes(trigger, PropAudioMode, PropSilenceMode, SetAudioSelection) {
		hiddenClick[m] = h
	}

	return [buttons.NumChannels]binding{
		buttons.HiddenButton: {click: hiddenClick, hold: hiddenHold},
		// Toggle clicks are reserved.
		buttons.ToggleLeft:  {hold: forModes(stepBack, RingModes()...)},
		buttons.ToggleRight: {hold: forModes(stepAhead, RingModes()...)},
	}
}
