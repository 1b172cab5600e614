package handlers

// StatusResponse represents the health status of the service.
type StatusResponse struct {
	Status    string        `json:"status"`    // health status ("ok").
	Timestamp string        `json:"ts"`        // timestamp when health check was performed.
	Version   string        `json:"version"`   // version of the client.
	Revision  string        `json:"revision"`  // revision of the client.
	BuildDate string        `json:"buildDate"` // build date of the client.
	HasConfig bool          `json:"hasConfig"` // whether a datasite is provisioned.
	Datasite  *DatasiteInfo `json:"datasite,omitempty"`
	Runtime   *RuntimeInfo  `json:"runtime,omitempty"`
}

// DatasiteInfo describes the provisioning state of the datasite.
type DatasiteInfo struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RuntimeInfo carries live process and transfer metrics.
type RuntimeInfo struct {
	Client *ClientRuntime `json:"client,omitempty"`
	HTTP   *HTTPRuntime   `json:"http,omitempty"`
}

// ClientRuntime describes the running daemon process.
type ClientRuntime struct {
	Version   string `json:"version"`
	StartedAt string `json:"started_at"`
	UptimeSec int64  `json:"uptime_sec"`
}

// HTTPRuntime mirrors the SDK's transfer counters.
type HTTPRuntime struct {
	BytesSentTotal int64  `json:"bytes_sent_total"`
	BytesRecvTotal int64  `json:"bytes_recv_total"`
	LastSentAtNs   int64  `json:"last_sent_at_ns,omitempty"`
	LastRecvAtNs   int64  `json:"last_recv_at_ns,omitempty"`
	LastError      string `json:"last_error,omitempty"`
}
