package model

// Head is a new-block notification from the chain provider.
type Head struct {
	Number    uint64 `json:"number"`
	Hash      string `json:"hash"`
	Timestamp uint64 `json:"timestamp"`
}
