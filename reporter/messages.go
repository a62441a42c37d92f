package reporter

// IntroText is shown once at startup.
const IntroText = `
livetest watches the files and reruns
the tests once you've saved your changes.

You can use the following keys in the terminal:
'ctrl+s' - stop current running;
'ctrl+r' - restart running;
'ctrl+w' - turn off/on files watching;
'ctrl+c' - close browsers and terminate the process.

`

// AbortedText replaces the report of an aborted run in the updating view.
const AbortedText = "Test run aborted."

const (
	msgSourceChanged   = "Sources are changed and test run is starting..."
	msgRunStarting     = "Test run is starting..."
	msgRunStarted      = "Test run in progress..."
	msgRunStopping     = "Current test run stopping..."
	msgRunFinished     = "Make changes in the source files or press ctrl+r to restart test run."
	msgRunStopped      = "Test run stopped. Press ctrl+r to restart test run."
	msgWatchEnabled    = "File watching enabled. Save changes in your files to run tests."
	msgWatchDisabled   = "File watching disabled."
	msgNothingToStop   = "There are no run tests at the moment."
	msgExiting         = "Stopping livetest..."
	msgTestRunAborted  = "Test run aborted"
	abortMarkerLowered = "test run aborted"
)

// Message returns the status line for e.
func Message(e Event) string {
	switch e.Kind {
	case Intro:
		return IntroText
	case SourceChanged:
		return msgSourceChanged
	case RunStarting:
		return msgRunStarting
	case RunStarted:
		return msgRunStarted
	case RunStopping:
		return msgRunStopping
	case RunFinished:
		return msgRunFinished
	case RunStopped:
		return msgRunStopped
	case WatchToggled:
		if e.WatchEnabled {
			return msgWatchEnabled
		}
		return msgWatchDisabled
	case NothingToStop:
		return msgNothingToStop
	case Exiting:
		return msgExiting
	}
	return ""
}
