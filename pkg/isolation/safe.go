package isolation

import "github.com/sealpost/core/pkg/contracts"

// SafeAttachmentInfo is the only attachment projection allowed outside
// capsule scope. It carries metadata and a content length, never the
// content itself.
type SafeAttachmentInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	MimeType      string `json:"mime_type"`
	Extracted     bool   `json:"extracted"`
	ContentLength int    `json:"content_length"`
}

// SafeInfo projects an attachment for logging and transport metadata.
func SafeInfo(a contracts.CapsuleAttachment) SafeAttachmentInfo {
	return SafeAttachmentInfo{
		ID:            a.ID,
		Name:          a.Name,
		Size:          a.Size,
		MimeType:      a.MimeType,
		Extracted:     a.Extracted,
		ContentLength: len(a.SemanticContent),
	}
}

// SafeInfos projects a slice of attachments.
func SafeInfos(atts []contracts.CapsuleAttachment) []SafeAttachmentInfo {
	if len(atts) == 0 {
		return nil
	}
	out := make([]SafeAttachmentInfo, 0, len(atts))
	for _, a := range atts {
		out = append(out, SafeInfo(a))
	}
	return out
}
