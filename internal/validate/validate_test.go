// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid http", "http://example.com", []string{"http", "https"}, false},
		{"valid https", "https://example.com", []string{"http", "https"}, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"no scheme", "example.com", []string{"http"}, true},
		{"with port", "http://example.com:8080", []string{"http"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)
			assert.Equal(t, tt.wantErr, !v.IsValid(), v.Err())
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":3001", false},
		{"127.0.0.1:8080", false},
		{"[::1]:0", false},
		{"3001", true},
		{":http", true},
		{":70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			v := New()
			v.ListenAddr("ListenAddr", tt.addr)
			assert.Equal(t, tt.wantErr, !v.IsValid(), v.Err())
		})
	}
}

func TestValidator_Bounds(t *testing.T) {
	v := New()
	v.Range("a", 5, 1, 10)
	v.Fraction("b", 0.5)
	v.Duration("c", time.Second, time.Millisecond, time.Minute)
	v.Positive("d", 1)
	v.OneOf("e", "file", []string{"file", "redis"})
	v.NotEmpty("f", "x")
	require.True(t, v.IsValid(), v.Err())

	v.Range("a", 11, 1, 10)
	v.Fraction("b", 1.5)
	v.Duration("c", 0, time.Millisecond, time.Minute)
	v.Positive("d", 0)
	v.OneOf("e", "s3", []string{"file", "redis"})
	v.NotEmpty("f", "  ")

	fields := make([]string, 0, len(v.Errors()))
	for _, e := range v.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, fields)
}

func TestValidator_Directory(t *testing.T) {
	root := t.TempDir()

	t.Run("creates missing directory", func(t *testing.T) {
		v := New()
		dir := filepath.Join(root, "new")
		v.Directory("DataDir", dir, false)
		require.True(t, v.IsValid(), v.Err())
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("must exist", func(t *testing.T) {
		v := New()
		v.Directory("DataDir", filepath.Join(root, "missing"), true)
		assert.False(t, v.IsValid())
	})

	t.Run("rejects traversal", func(t *testing.T) {
		v := New()
		v.Directory("DataDir", root+"/../etc", false)
		assert.False(t, v.IsValid())
	})

	t.Run("rejects file", func(t *testing.T) {
		file := filepath.Join(root, "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		v := New()
		v.Directory("DataDir", file, false)
		assert.False(t, v.IsValid())
	})
}

func TestValidationError(t *testing.T) {
	v := New()
	require.NoError(t, v.Err())

	v.AddError("A", "bad", 1)
	v.AddError("B", "worse", 2)
	err := v.Err()

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors(), 2)
	assert.Equal(t, "validation failed for A: bad; validation failed for B: worse", err.Error())
}
