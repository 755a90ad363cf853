package entity

import "strings"

// ImageMIMEPrefix обязательный префикс объявленного типа файла.
const ImageMIMEPrefix = "image/"

// ImageAsset выбранное пользователем изображение.
type ImageAsset struct {
	Name     string
	RawBytes []byte
	MimeType string
	Preview  string // data URI уменьшенной копии
	Sequence uint64 // номер выбора, по которому отбрасываются устаревшие декодирования
}

// IsImageType проверяет объявленный MIME-тип.
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(mimeType, ImageMIMEPrefix)
}

// UploadPayload тело запроса к сервису детекции.
type UploadPayload struct {
	Filename    string
	ContentType string // определяется по байтам, а не по объявленному типу
	Data        []byte
}
