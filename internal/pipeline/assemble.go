package pipeline

import (
	"slices"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/publish"
)

// AssembleInput — всё, из чего собирается запись изображения.
type AssembleInput struct {
	ImageID   string
	Now       time.Time
	Filename  string
	MIME      string
	Options   model.ResolvedOptions
	Defaults  model.Defaults
	Attrs     model.RecordAttributes
	Primary   *model.DerivedArtifact
	Thumbnail *model.DerivedArtifact
	Locations *publish.Locations
	Metadata  model.ImageMetadata
}

// Assemble собирает ImageRecord. Чистая функция: время и идентификатор
// приходят во входных данных.
func Assemble(in AssembleInput) *model.ImageRecord {
	now := in.Now.UTC()

	visibility := in.Attrs.Visibility
	if !visibility.Valid() {
		visibility = in.Defaults.Visibility
	}

	rec := &model.ImageRecord{
		ID:      in.ImageID,
		OwnerID: in.Attrs.OwnerID,

		URL:         in.Locations.PrimaryURL,
		ObjectKey:   in.Locations.PrimaryKey,
		Width:       in.Primary.Width,
		Height:      in.Primary.Height,
		Size:        in.Primary.Size,
		ContentType: in.Primary.MimeType,

		ThumbnailURL:    in.Locations.ThumbnailURL,
		ThumbnailKey:    in.Locations.ThumbnailKey,
		ThumbnailWidth:  in.Thumbnail.Width,
		ThumbnailHeight: in.Thumbnail.Height,
		ThumbnailSize:   in.Thumbnail.Size,

		OriginalFilename: in.Filename,
		MimeType:         in.MIME,
		Visibility:       visibility,
		AccessSecretHash: in.Attrs.AccessSecretHash,
		CollectionID:     in.Attrs.CollectionID,

		CreatedAt: now,
		UpdatedAt: now,

		Tags:     slices.Clone(in.Attrs.Tags),
		Metadata: in.Metadata,
	}

	if in.Options.AutoDeleteAfter > 0 {
		exp := now.Add(in.Options.AutoDeleteAfter)
		rec.ExpiresAt = &exp
	}
	return rec
}
