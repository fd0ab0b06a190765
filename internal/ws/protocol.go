package ws

type MessageType string

const (
	MsgData  MessageType = "data"  // periodic waveform/BPM frame
	MsgAlert MessageType = "alert" // event activations, coalesced
	MsgReset MessageType = "reset" // session was reset
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// DataPayload mirrors the /api/data response so dashboards can use either
// transport interchangeably.
type DataPayload struct {
	ECG        []float64 `json:"ecg"` // smoothed recent samples
	BPM        int       `json:"bpm"`
	BPMHistory []int     `json:"bpm_history"`
	Events     []string  `json:"events"`
}

type AlertPayload struct {
	Events []string `json:"events"`
	Ts     int64    `json:"ts"` // Unix milliseconds
}
