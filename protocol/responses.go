package protocol

// AnnounceResponse is the decoded body of a successful HTTP tracker
// announce. A "failure reason" is reported as an error instead.
type AnnounceResponse struct {
	WarningMessage string
	Interval       int64  // Seconds to wait before the next announce.
	MinInterval    *int64 // Nil when the tracker did not send one.
	TrackerId      string
	Complete       int64 // Seeders.
	Incomplete     int64 // Leechers.
	Peers          []Peer
}
