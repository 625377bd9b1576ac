package writerbackends

import (
	"fmt"
	"net/url"
	"strings"
)

// Location schemes understood by ParseLocation.
const (
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
	SchemeSFTP = "sftp"
	SchemeHTTP = "http"
	SchemeFile = "file"
)

// Location is a parsed source address.
type Location struct {
	Scheme string
	Bucket string
	Key    string
	URL    string
}

// ParseLocation recognises s3://bucket/key, S3 virtual-hosted and path-style
// https URLs, gs://bucket/key, sftp://host/path, other http(s) URLs and local
// paths.
func ParseLocation(location string) (Location, error) {
	if location == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(location, "://") {
		return Location{Scheme: SchemeFile, Key: location}, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", location, err)
	}
	key := strings.TrimPrefix(u.Path, "/")

	switch strings.ToLower(u.Scheme) {
	case "s3":
		return Location{Scheme: SchemeS3, Bucket: u.Host, Key: key, URL: location}, nil
	case "gs":
		return Location{Scheme: SchemeGCS, Bucket: u.Host, Key: key, URL: location}, nil
	case "sftp":
		return Location{Scheme: SchemeSFTP, Bucket: u.Host, Key: u.Path, URL: location}, nil
	case "file":
		return Location{Scheme: SchemeFile, Key: u.Path, URL: location}, nil
	case "http", "https":
		if bucket, ok := s3VirtualHostBucket(u.Host); ok {
			return Location{Scheme: SchemeS3, Bucket: bucket, Key: key, URL: location}, nil
		}
		if isS3Host(u.Host) {
			bucket, rest, _ := strings.Cut(key, "/")
			return Location{Scheme: SchemeS3, Bucket: bucket, Key: rest, URL: location}, nil
		}
		return Location{Scheme: SchemeHTTP, URL: location}, nil
	}
	return Location{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
}

// s3VirtualHostBucket extracts the bucket from bucket.s3[.region].amazonaws.com.
func s3VirtualHostBucket(host string) (string, bool) {
	host = strings.ToLower(host)
	if !strings.HasSuffix(host, ".amazonaws.com") {
		return "", false
	}
	if i := strings.Index(host, ".s3."); i > 0 {
		return host[:i], true
	}
	if i := strings.Index(host, ".s3-"); i > 0 {
		return host[:i], true
	}
	return "", false
}

func isS3Host(host string) bool {
	host = strings.ToLower(host)
	return strings.HasSuffix(host, ".amazonaws.com") && (strings.HasPrefix(host, "s3.") || strings.HasPrefix(host, "s3-"))
}
