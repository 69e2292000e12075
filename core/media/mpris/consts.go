package mpris

// D-Bus names used by the MPRIS backend.
const (
	busPrefix   = "org.mpris.MediaPlayer2."
	objectPath  = "/org/mpris/MediaPlayer2"
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"

	dbusIface      = "org.freedesktop.DBus"
	propIface      = "org.freedesktop.DBus.Properties"
	listNames      = dbusIface + ".ListNames"
	getNameOwner   = dbusIface + ".GetNameOwner"
	nameOwnerChg   = dbusIface + ".NameOwnerChanged"
	propGet        = propIface + ".Get"
	propGetAll     = propIface + ".GetAll"
	propChanged    = propIface + ".PropertiesChanged"
	seekedSignal   = playerIface + ".Seeked"
	methodPlay     = playerIface + ".Play"
	methodPause    = playerIface + ".Pause"
	methodNext     = playerIface + ".Next"
	methodPrevious = playerIface + ".Previous"
	methodSeek     = playerIface + ".Seek"
	methodSetPos   = playerIface + ".SetPosition"
)

// Notification kinds routed by the signal loop.
const (
	kindMetadata = "metadata"
	kindPlayback = "playback"
	kindTimeline = "timeline"
	kindSessions = "sessions"
	kindCurrent  = "current"
)

// MPRIS positions are microseconds; platform ticks are 100ns.
const ticksPerMicrosecond = 10
