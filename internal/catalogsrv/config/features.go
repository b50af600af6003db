package config

const (
	// Compress cached payloads with snappy before they are written to Redis.
	CompressCacheValues = true
	// Probe for a free clone slug at most this many times before giving up.
	MaxCloneSlugAttempts = 100
)
