package model

// DerivedArtifact — один производный бинарный артефакт (основной или миниатюра).
// Владеет буфером до публикации; после публикации буфер освобождается Release.
type DerivedArtifact struct {
	Data     []byte
	Width    int
	Height   int
	Size     int64
	MimeType string
	// Ext — расширение без точки для ключа объекта (jpg, png, gif)
	Ext string
}

// NewArtifact создаёт артефакт, вычисляя размер по буферу.
func NewArtifact(data []byte, width, height int, mimeType, ext string) *DerivedArtifact {
	return &DerivedArtifact{
		Data:     data,
		Width:    width,
		Height:   height,
		Size:     int64(len(data)),
		MimeType: mimeType,
		Ext:      ext,
	}
}

// Release отпускает буфер. Размеры и Size сохраняются.
func (a *DerivedArtifact) Release() {
	if a != nil {
		a.Data = nil
	}
}
