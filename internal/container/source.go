package container

import (
	"bytes"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/devcert/internal/pki"
)

// derSequence is the first byte of any DER encoded certificate or PFX.
const derSequence = 0x30

// ReadSource resolves src to raw content. An existing file is read from disk,
// otherwise src is treated as inline base64 text. A string that is neither
// base64 nor an existing file but looks like a path is reported as ErrFileNotFound.
func ReadSource(src string) ([]byte, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: source is empty", pki.ErrArgument)
	}

	// path existence is checked first
	if info, err := os.Stat(trimmed); err == nil && !info.IsDir() {
		return ReadFile(trimmed)
	}

	if _, err := decodeBase64([]byte(trimmed)); err == nil {
		log.Debug().Int("length", len(trimmed)).Msg("using inline base64 source")
		return []byte(trimmed), nil
	}

	if looksLikePath(trimmed) {
		return nil, fmt.Errorf("%w: %s", pki.ErrFileNotFound, trimmed)
	}

	return nil, fmt.Errorf("%w: source is neither a file nor base64 text", pki.ErrParse)
}

// ReadFile reads a source file, reporting ErrFileNotFound when it is absent.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", pki.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int("size", len(data)).Msg("read source file")

	return data, nil
}

// Load resolves src with ReadSource and decodes the content to DER.
func Load(src string) ([]byte, error) {
	data, err := ReadSource(src)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode converts textual content (base64 or PEM) to DER. Binary DER is returned as is.
func Decode(data []byte) ([]byte, error) {
	// binary DER is never trimmed, its trailing bytes may look like whitespace
	if len(data) > 0 && data[0] == derSequence {
		return data, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: no content", pki.ErrParse)
	}

	if block, _ := pem.Decode(trimmed); block != nil {
		return block.Bytes, nil
	}

	if der, err := decodeBase64(trimmed); err == nil {
		return der, nil
	}

	return nil, fmt.Errorf("%w: content is not base64, PEM or DER", pki.ErrParse)
}

// decodeBase64 decodes standard base64, ignoring line breaks.
func decodeBase64(text []byte) ([]byte, error) {
	compact := bytes.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, text)

	der, err := base64.StdEncoding.DecodeString(string(compact))
	if err != nil {
		return nil, err
	}
	if len(der) == 0 || der[0] != derSequence {
		return nil, errors.New("decoded content is not DER")
	}
	return der, nil
}

func looksLikePath(s string) bool {
	return strings.ContainsAny(s, `/\.~`)
}
