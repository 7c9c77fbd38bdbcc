package config

import "time"

const (
	// Gateway
	VideoRoomPlugin    = "janus.plugin.videoroom"
	JanusSubprotocol   = "janus-protocol"
	JanusRoomIDMin     = 100000
	JanusRoomIDMax     = 999999
	HostDisplayName    = "host"
	DefaultGatewayWait = 5 * time.Second

	// Room
	DefaultViewerBoost  = 10
	HostGroupSuffix     = "_host"
	ListenerGroupSuffix = "_listener"
	MirrorQueueSize     = 1024
	LivestreamType      = "Selling"
	ClinicAdminRole     = "Clinic Admin"

	// Bookings made during a show count toward the settlement only in this state.
	OrderStatusCompleted = "Completed"

	// Activity log
	ActivityQueueSize      = 1024
	ActivityFlushBatch     = 100
	DefaultActivityFlush   = 2 * time.Second
	DefaultActivityPageLen = 20
	MaxActivityPageLen     = 100
)

// ReactionMeanings maps reaction ids accepted from viewers to their display text.
var ReactionMeanings = map[int]string{
	1: "👍 Looks great!",
	2: "❤️ Love it!",
	3: "🔥 That's fire!",
	4: "👏 Amazing work!",
	5: "😍 Beautiful!",
}
