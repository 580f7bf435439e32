package parse

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/msg-photos/pkg/models"
	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// Markers of the exported message format
const (
	AttachmentDescriptionSelector = "div.attachment__description"
	AttachmentLinkSelector        = "a.attachment__link"
	MessageHeaderSelector         = "div.message__header"
	PhotoDescription              = "Photo"
)

// ParseDocument extracts every photo attachment from one conversation document, in DOM order.
// Attachments with a missing or empty link, missing header or unparsable timestamp are reported in
// recordErrs and skipped; err is set only when the document itself cannot be parsed.
func ParseDocument(r io.Reader) (records []models.ImageRecord, recordErrs []error, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: HTML document: %w", utils.ErrParsing, err)
	}

	// A single selector group is matched in document order, so the most recent
	// header seen while walking is the nearest one preceding each description.
	var lastHeader *goquery.Selection
	doc.Find(MessageHeaderSelector + ", " + AttachmentDescriptionSelector).Each(func(i int, s *goquery.Selection) {
		if s.Is(MessageHeaderSelector) {
			lastHeader = s
			return
		}
		if s.Text() != PhotoDescription {
			return
		}

		rec, recErr := buildRecord(s, lastHeader)
		if recErr != nil {
			recordErrs = append(recordErrs, fmt.Errorf("attachment #%d: %w", i, recErr))
			return
		}
		records = append(records, rec)
	})

	return records, recordErrs, nil
}

func buildRecord(description, header *goquery.Selection) (models.ImageRecord, error) {
	linkSel := description.NextAllFiltered(AttachmentLinkSelector).First()
	if linkSel.Length() == 0 {
		return models.ImageRecord{}, utils.WrapErrorf(utils.ErrParsing, "no attachment link after photo description")
	}
	rawLink := strings.TrimSpace(linkSel.Text())
	if rawLink == "" {
		return models.ImageRecord{}, utils.WrapErrorf(utils.ErrParsing, "empty attachment link")
	}
	// Unnormalizable links are kept verbatim and fail at download time
	link, err := NormalizeLink(rawLink)
	if err != nil {
		link = rawLink
	}

	if header == nil {
		return models.ImageRecord{}, utils.WrapErrorf(utils.ErrParsing, "no message header before photo attachment")
	}
	sentAt, err := ParseSendTime(header.Text())
	if err != nil {
		return models.ImageRecord{}, err
	}

	return models.ImageRecord{Link: link, SentAt: sentAt}, nil
}
