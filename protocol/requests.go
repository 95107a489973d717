package protocol

const DefaultPort uint16 = 6881

type AnnounceEvent int32

const (
	AnnounceEventNone      AnnounceEvent = 0
	AnnounceEventCompleted AnnounceEvent = 1 // The local peer just completed the torrent.
	AnnounceEventStarted   AnnounceEvent = 2 // The local peer has just resumed this torrent.
	AnnounceEventStopped   AnnounceEvent = 3 // The local peer is leaving the swarm.
)

var announceEventNames = [...]string{
	"empty",
	"completed",
	"started",
	"stopped",
}

// String returns the name of the event as sent in the HTTP "event" parameter.
func (event AnnounceEvent) String() string {
	if event < 0 || int(event) >= len(announceEventNames) {
		return "unknown"
	}

	return announceEventNames[event]
}

type AnnounceRequest struct {
	InfoHash   InfoHash      //
	PeerId     PeerId        //
	Port       uint16        // Port the local peer listens on.
	Uploaded   int64         // Number of bytes uploaded.
	Downloaded int64         // Number of bytes downloaded.
	Left       int64         // Number of bytes left.
	Compact    bool          // Ask for the 6-byte peer format.
	Event      AnnounceEvent // Omitted from the query when none.
	NumWant    int32         // Number of Peers the Client wants. 0 leaves it to the tracker.
}

// NewAnnounceRequest returns a request for a fresh download with the usual
// defaults: port 6881, nothing transferred yet, compact peers.
func NewAnnounceRequest(infoHash InfoHash, peerId PeerId, left int64) AnnounceRequest {
	return AnnounceRequest{
		InfoHash: infoHash,
		PeerId:   peerId,
		Port:     DefaultPort,
		Left:     left,
		Compact:  true,
	}
}
