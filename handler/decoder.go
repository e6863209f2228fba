package handler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// decodeRequest decodes one framed request off conn:
//
//	request  := u32be length || length bytes of metadata || body
//	metadata := (name NUL value NUL)*
//
// It reads exactly one request's metadata from conn and returns it paired
// with a body stream positioned right after the metadata. End-of-stream on
// the length prefix returns errNoRequest (a clean end of connection, not an
// error); a short read anywhere else is a TransientConnection error.
func decodeRequest(conn net.Conn) (*Request, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errNoRequest
		}
		return nil, transientErr("decoder", err)
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxHeaderSize {
		return nil, errHeaderTooLarge
	}

	metadata := make([]byte, length)
	if _, err := io.ReadFull(conn, metadata); err != nil {
		return nil, transientErr("decoder", err)
	}

	headers := parseMetadata(metadata)

	// CONTENT_LENGTH mirrors HTTP_CONTENT_LENGTH unconditionally, even
	// when the latter is absent: absence deletes CONTENT_LENGTH, resolved
	// in DESIGN.md as the literal effect of the original source's
	// unconditional assignment of a possibly-nil value.
	if v, ok := headers["HTTP_CONTENT_LENGTH"]; ok {
		headers["CONTENT_LENGTH"] = v
	} else {
		delete(headers, "CONTENT_LENGTH")
	}

	return &Request{
		Headers: headers,
		Body:    nonSeekableBody{conn},
	}, nil
}

// parseMetadata splits a NUL-separated run of bytes into name/value pairs.
// An odd trailing element (no closing NUL for a value) is discarded, since
// the wire format sends pairs only.
func parseMetadata(metadata []byte) map[string]string {
	parts := bytes.Split(metadata, []byte{0})
	// A well-formed buffer ends in NUL, so Split leaves one empty trailing
	// element; drop it first so an odd count always means a genuinely
	// unpaired trailing name, not that artifact.
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	headers := make(map[string]string, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		headers[string(parts[i])] = string(parts[i+1])
	}
	return headers
}
