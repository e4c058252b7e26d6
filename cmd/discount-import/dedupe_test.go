package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/store-checkout/internal/domain/discount"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func codes(ds []discount.Discount) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Code
	}
	slices.Sort(out)
	return out
}

func TestCollectUnique(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.csv.gz",
			"ALPHA,PERCENTAGE,10",
			"SHARED,FIXED,5",
			"",
			"TWICE,FIXED,1",
			"TWICE,FIXED,2",
		),
		writeGz(t, dir, "b.csv.gz",
			"BRAVO,FIXED,3.50",
			"SHARED,PERCENTAGE,20",
		),
		writeGz(t, dir, "c.csv.gz",
			"CHARLIE,BUY_ONE_GET_ONE_FREE,0",
		),
	}

	unique, ambiguous, err := collectUnique(context.Background(), files, 1000)
	require.NoError(t, err)
	assert.Equal(t, 2, ambiguous)
	assert.Equal(t, []string{"ALPHA", "BRAVO", "CHARLIE"}, codes(unique))

	for _, d := range unique {
		assert.NotEmpty(t, d.ID)
		assert.False(t, d.Used)
		if d.Code == "BRAVO" {
			assert.Equal(t, discount.TypeFixed, d.Type)
			assert.Equal(t, "3.5", d.Amount.String())
		}
	}
}

func TestCollectUniqueRejectsBadLine(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "bad.csv.gz", "OK,FIXED,1", "BROKEN,FIXED"),
	}

	_, _, err := collectUnique(context.Background(), files, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseLine(t *testing.T) {
	for _, tt := range []struct {
		line string
		ok   bool
	}{
		{"CODE,PERCENTAGE,15", true},
		{" CODE , FIXED , 2.5 ", true},
		{"CODE,PERCENTAGE,101", false},
		{"CODE,FIXED,-1", false},
		{"CODE,UNKNOWN,1", false},
		{"CODE,FIXED,abc", false},
		{",FIXED,1", false},
		{"CODE,FIXED", false},
	} {
		d, err := parseLine(tt.line)
		if !tt.ok {
			assert.Error(t, err, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, "CODE", d.Code)
	}
}
