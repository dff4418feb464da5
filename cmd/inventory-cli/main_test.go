package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func TestSnapshotOpener_ResolvesNames(t *testing.T) {
	dir := t.TempDir()
	open := snapshotOpener(filepath.Join(dir, "inventory.json"), quietLogger())

	repo, err := open("  ")
	require.NoError(t, err)
	assert.NotNil(t, repo)

	_, err = open("backup.json")
	require.NoError(t, err)
}

func TestMenu_SaveThenLoadInNewSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.json")

	script := strings.Join([]string{
		"1", "grocery", "Apples", "1", "5", "Fresh", "10", "2099-01-01",
		"12", "",
		"14",
	}, "\n") + "\n"
	var out bytes.Buffer
	require.NoError(t, newMenu(strings.NewReader(script), &out, path, quietLogger()).Run(context.Background()))
	assert.Contains(t, out.String(), "Inventory saved successfully")
	assert.FileExists(t, path)

	out.Reset()
	require.NoError(t, newMenu(strings.NewReader("13\n\n3\n14\n"), &out, path, quietLogger()).Run(context.Background()))
	assert.Contains(t, out.String(), "Inventory loaded successfully")
	assert.Contains(t, out.String(), "[ID 1, Qty 5] Name: Apples")
}
