package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealpost/core/pkg/config"
	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/dispatch"
)

func testConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SEALPOST_DB_PATH", filepath.Join(dir, "sealpost.db"))
	t.Setenv("SEALPOST_BLOB_DIR", filepath.Join(dir, "blobs"))
	t.Setenv("SEALPOST_PROFILES_DIR", filepath.Join(dir, "profiles"))
	t.Setenv("SEALPOST_PARSER_URL", "")
	t.Setenv("SEALPOST_REDIS_ADDR", "")
	t.Setenv("SEALPOST_OTLP_ENDPOINT", "")
	t.Setenv("SEALPOST_HANDSHAKE_SECRET", "")
	t.Setenv("SEALPOST_DATABASE_URL", "")
	t.Setenv("SEALPOST_S3_BUCKET", "")
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost"}, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "USAGE")
}

func TestRunUnknownCommand(t *testing.T) {
	testConfig(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "frobnicate"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "Unknown command")
}

func TestRunVersion(t *testing.T) {
	testConfig(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "version"}, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), version)
}

func TestSendChatEndToEnd(t *testing.T) {
	testConfig(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "send", "--method", "chat", "--text",
		"Quarterly figures attached below.", "--json"}, &out, &errOut)
	require.Equal(t, 0, code, "stderr: %s", errOut.String())

	var result struct {
		Success        bool   `json:"success"`
		DeliveryStatus string `json:"delivery_status"`
		EntryID        string `json:"entry_id"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, string(contracts.StatusSentChat), result.DeliveryStatus)
	assert.NotEmpty(t, result.EntryID)
}

func TestSendRejectsEmptyCapsule(t *testing.T) {
	testConfig(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "send", "--method", "chat"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "content")
}

func TestBoundaryShowDefault(t *testing.T) {
	testConfig(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "boundary", "show"}, &out, &errOut)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "No outbound network access")
	assert.Contains(t, out.String(), "default")
}

func TestBoundaryEgressPersists(t *testing.T) {
	testConfig(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "boundary", "egress", "local_only"}, &out, &errOut)
	require.Equal(t, 0, code)

	out.Reset()
	code = Run([]string{"sealpost", "boundary", "show"}, &out, &errOut)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Local network only")
	assert.NotContains(t, out.String(), "never explicitly set")
}

func TestBoundaryRejectsUnknownPreset(t *testing.T) {
	testConfig(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "boundary", "egress", "everything"}, &out, &errOut)
	assert.Equal(t, 1, code)
}

func TestOutboxListAfterSend(t *testing.T) {
	testConfig(t)
	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "send", "--method", "chat", "--text",
		"Meeting notes for the week."}, &out, &errOut)
	require.Equal(t, 0, code, "stderr: %s", errOut.String())

	out.Reset()
	code = Run([]string{"sealpost", "outbox", "list"}, &out, &errOut)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "chat")
	assert.Contains(t, out.String(), string(contracts.StatusSentChat))
}

func TestValidateEnvelopeDocument(t *testing.T) {
	env := contracts.Envelope{
		FormatVersion:       contracts.EnvelopeFormatVersion,
		EnvelopeID:          uuid.NewString(),
		SenderFingerprint:   "fp-sender",
		HardwareAttestation: contracts.AttestationPending,
		CreatedAt:           time.Now(),
		ValidUntil:          time.Now().Add(time.Hour),
		Nonce:               uuid.NewString(),
		Capabilities:        contracts.NewCapabilitySet(contracts.CapDataAccess),
	}
	data, err := json.Marshal(&env)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "envelope.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var out, errOut bytes.Buffer
	code := Run([]string{"sealpost", "validate", "--envelope", path}, &out, &errOut)
	assert.Equal(t, 0, code, "output: %s", out.String())
	assert.Contains(t, out.String(), "is valid")

	env.ValidUntil = env.CreatedAt.Add(-time.Hour)
	data, err = json.Marshal(&env)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out.Reset()
	code = Run([]string{"sealpost", "validate", "--envelope", path}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "is invalid")
}

func TestBuildEngineClosesCleanly(t *testing.T) {
	testConfig(t)
	eng, err := buildEngine(context.Background(), config.Load())
	require.NoError(t, err)
	eng.close()
}

func TestHandshakeSecretBindsEnvelopes(t *testing.T) {
	testConfig(t)
	t.Setenv("SEALPOST_HANDSHAKE_SECRET", "shared-session-secret")

	ctx := context.Background()
	eng, err := buildEngine(ctx, config.Load())
	require.NoError(t, err)
	defer eng.close()

	eng.builder.SetText("hello over a handshaked session")
	result, err := eng.pipeline.Dispatch(ctx, dispatch.Request{Method: contracts.DeliveryChat})
	require.NoError(t, err)
	require.True(t, result.Success)

	env := eng.generator.Current()
	require.NotNil(t, env)
	assert.NotEmpty(t, env.HandshakeID, "envelopes carry the minted handshake id")
}

func TestNoHandshakeSecretLeavesEnvelopeUnbound(t *testing.T) {
	testConfig(t)

	ctx := context.Background()
	eng, err := buildEngine(ctx, config.Load())
	require.NoError(t, err)
	defer eng.close()

	eng.builder.SetText("hello without a handshake")
	_, err = eng.pipeline.Dispatch(ctx, dispatch.Request{Method: contracts.DeliveryChat})
	require.NoError(t, err)
	assert.Empty(t, eng.generator.Current().HandshakeID)
}
