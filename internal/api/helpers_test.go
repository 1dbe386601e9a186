// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api_test

import (
	"bytes"
	"io"
	"strings"

	"github.com/fleetward/spark/internal/apperr"
)

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func jsonContains(body []byte, needle string) bool {
	return bytes.Contains(body, []byte(needle))
}

func apperrNotFound() error {
	return apperr.New(apperr.CodeNotFound, apperr.ErrNotFound)
}
