// Package qr builds, parses and renders the check-in QR payload.
//
// Wire format (exact): CONF|<conferenceSlug>|<sessionId>|<email>|<epochMillis>
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	payloadPrefix = "CONF"
	payloadSep    = "|"
	dataURLPrefix = "data:image/png;base64,"
)

var (
	ErrInvalidPayload = errors.New("invalid qr payload")
	ErrInvalidDataURL = errors.New("invalid qr data url")
)

// Payload is the registration identity embedded in a QR code. It is
// sufficient to re-derive the registration at check-in time.
type Payload struct {
	ConferenceSlug string
	SessionID      string
	Email          string
	IssuedAt       time.Time
}

// BuildPayload serializes a payload to the pipe-delimited wire format.
func BuildPayload(conferenceSlug, sessionID, email string, issuedAt time.Time) string {
	return strings.Join([]string{
		payloadPrefix,
		conferenceSlug,
		sessionID,
		email,
		strconv.FormatInt(issuedAt.UnixMilli(), 10),
	}, payloadSep)
}

// ParsePayload parses the pipe-delimited wire format.
func ParsePayload(s string) (Payload, error) {
	parts := strings.Split(s, payloadSep)
	if len(parts) != 5 || parts[0] != payloadPrefix {
		return Payload{}, ErrInvalidPayload
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return Payload{}, ErrInvalidPayload
	}
	millis, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return Payload{}, ErrInvalidPayload
	}
	return Payload{
		ConferenceSlug: parts[1],
		SessionID:      parts[2],
		Email:          parts[3],
		IssuedAt:       time.UnixMilli(millis),
	}, nil
}

// DataURL renders text as a 256px QR PNG and returns it base64-encoded as a
// data URL, ready for embedding in an <img> tag or storing on the row.
func DataURL(text string) (string, error) {
	png, err := qrcode.Encode(text, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// PNGFromDataURL extracts the raw PNG bytes from a data URL produced by
// DataURL, for use as an email attachment.
func PNGFromDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, dataURLPrefix) {
		return nil, ErrInvalidDataURL
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, dataURLPrefix))
	if err != nil {
		return nil, ErrInvalidDataURL
	}
	return png, nil
}
