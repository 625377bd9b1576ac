package models

// JobToken is the claim set a trusted upload service signs when it hands a
// source asset to the pipeline.
type JobToken struct {
	Issuer    string     `json:"iss"` // optional
	Subject   string     `json:"sub"`
	IssuedAt  int64      `json:"iat"`
	ExpiresAt int64      `json:"exp"`
	Job       JobRequest `json:"job"`
}

// JobRequest describes one asset to transcode and publish.
type JobRequest struct {
	JobID           string            `json:"jobId"`
	SourceURL       string            `json:"sourceUrl"`
	CallbackURL     string            `json:"callbackUrl,omitempty"`
	CallbackHeaders map[string]string `json:"callbackHeaders,omitempty"`
}
