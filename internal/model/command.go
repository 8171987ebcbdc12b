package model

// CommandKind identifies the command sent from the UI to the acquisition
// engine over the command queue. Commands are never dropped: the queue is
// sized generously and the UI blocks briefly on send rather than lose one.
type CommandKind string

const (
	CmdStartSession      CommandKind = "START_SESSION"
	CmdStopSession       CommandKind = "STOP_SESSION"
	CmdUpdateSettings    CommandKind = "UPDATE_SETTINGS"
	CmdSetCollectionMode CommandKind = "SET_COLLECTION_MODE"
	CmdCaptureDarkRef    CommandKind = "CAPTURE_DARK_REF"
	CmdCaptureWhiteRef   CommandKind = "CAPTURE_WHITE_REF"
	CmdAutoIntegCapture  CommandKind = "AUTO_INTEG_CAPTURE"
)

// Command is the single message type carried on the command queue. Only
// the fields relevant to Kind are populated; the zero value of the others
// is ignored.
type Command struct {
	Kind CommandKind

	// UPDATE_SETTINGS payload
	IntegrationTimeMS int
	ScansToAverage    int

	// SET_COLLECTION_MODE payload
	CollectionMode CollectionMode

	// AUTO_INTEG_CAPTURE payload
	TestIntegrationUS int
}
