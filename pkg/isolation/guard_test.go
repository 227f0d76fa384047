package isolation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealpost/core/pkg/contracts"
)

const extractedSample = "This quarterly report covers revenue, operating expenses, and projected cash flow for the fiscal year."

func capsuleWithContent(content string) *contracts.Capsule {
	return &contracts.Capsule{
		CapsuleID: "cap-1",
		Attachments: []contracts.CapsuleAttachment{
			{ID: "att-1", Name: "report.pdf", SemanticContent: content, Extracted: true},
		},
	}
}

func TestCheckPassesCleanText(t *testing.T) {
	g := NewGuard(nil)
	err := g.Check(context.Background(), "Please find the report attached.", capsuleWithContent(extractedSample))
	assert.NoError(t, err)
}

func TestCheckDetectsLeakedContent(t *testing.T) {
	g := NewGuard(nil)
	leaked := "FYI: " + extractedSample + " Let me know what you think."

	err := g.Check(context.Background(), leaked, capsuleWithContent(extractedSample))
	require.Error(t, err)
	require.True(t, contracts.IsSecurityViolation(err))

	// The violation names the attachment but never carries the content.
	assert.Contains(t, err.Error(), "att-1")
	assert.NotContains(t, err.Error(), "quarterly report")
}

func TestCheckDetectsReflowedContent(t *testing.T) {
	g := NewGuard(nil)
	reflowed := strings.ReplaceAll(extractedSample, " ", "\n  ")

	err := g.Check(context.Background(), reflowed, capsuleWithContent(extractedSample))
	require.True(t, contracts.IsSecurityViolation(err))
}

func TestCheckIgnoresShortContent(t *testing.T) {
	g := NewGuard(nil)
	short := "Invoice #42"

	err := g.Check(context.Background(), "Invoice #42 attached", capsuleWithContent(short))
	assert.NoError(t, err)
}

func TestCheckSamplesLeadingContent(t *testing.T) {
	g := NewGuard(nil)
	long := extractedSample + strings.Repeat(" More filler text to push past the sample window.", 20)

	// Only the leading sample is matched; a tail fragment alone passes.
	tail := long[len(long)-100:]
	assert.NoError(t, g.Check(context.Background(), tail, capsuleWithContent(long)))

	// The leading sample itself is caught.
	lead := long[:sampleLength]
	require.True(t, contracts.IsSecurityViolation(
		g.Check(context.Background(), "quote: "+lead, capsuleWithContent(long))))
}

func TestSafeInfoOmitsContent(t *testing.T) {
	info := SafeInfo(contracts.CapsuleAttachment{
		ID: "att-1", Name: "report.pdf", Size: 1024, MimeType: "application/pdf",
		SemanticContent: extractedSample, Extracted: true,
	})
	assert.Equal(t, len(extractedSample), info.ContentLength)
	assert.Equal(t, "att-1", info.ID)
}
