package export

import (
	"fmt"
	"strings"
)

const (
	defaultExtension = "jpg"
	dateLayout       = "2006-01-02"

	// fallbackArchiveName is used when the album name has no ASCII letters
	// or digits left after sanitizing.
	fallbackArchiveName = "album"
)

// Sanitize drops every character that is not an ASCII letter or digit.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// BuildFilename derives the export filename for a photo:
//
//	{album}_{date}.{ext}
//	{album}_{folder}_{date}.{ext}
//
// The date is the UTC calendar date of CreatedAt and the extension is taken
// from the original upload name, lower-cased, defaulting to jpg. Two photos
// taken on the same day produce the same name; callers resolve that with
// CollisionName.
func BuildFilename(p Photo, albumName, folderName string) string {
	date := p.CreatedAt.UTC().Format(dateLayout)
	ext := Extension(p.FileName)
	album := Sanitize(albumName)

	if folderName != "" {
		return fmt.Sprintf("%s_%s_%s.%s", album, Sanitize(folderName), date, ext)
	}
	return fmt.Sprintf("%s_%s.%s", album, date, ext)
}

// Extension returns the lower-cased text after the last dot in name, or jpg
// when there is none.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return defaultExtension
	}
	return strings.ToLower(name[i+1:])
}

// CollisionName rewrites name by inserting _{index} immediately before the
// extension. index is the 1-based position of the item in its batch, which
// makes the result unique within that batch.
func CollisionName(name string, index int) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return fmt.Sprintf("%s_%d", name, index)
	}
	return fmt.Sprintf("%s_%d%s", name[:i], index, name[i:])
}

// ArchiveName returns the filename of the ZIP archive for an album.
func ArchiveName(albumName string) string {
	name := Sanitize(albumName)
	if name == "" {
		name = fallbackArchiveName
	}
	return name + ".zip"
}
