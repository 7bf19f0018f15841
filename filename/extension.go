package filename

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// rule maps MIME types accepted by match to ext.
type rule struct {
	match func(mimeType string) bool
	ext   string
}

func anyOf(subs ...string) func(string) bool {
	return func(m string) bool {
		for _, s := range subs {
			if strings.Contains(m, s) {
				return true
			}
		}
		return false
	}
}

func allOf(subs ...string) func(string) bool {
	return func(m string) bool {
		for _, s := range subs {
			if !strings.Contains(m, s) {
				return false
			}
		}
		return true
	}
}

// rules is evaluated top to bottom and the first match wins, so entries
// that overlap (e.g. "mpeg"+"audio" before "mpeg"+"video", or "zip"
// before "epub+zip") must stay in this order.
var rules = []rule{
	// Documents.
	{anyOf("pdf"), ".pdf"},
	{anyOf("msword"), ".doc"},
	{anyOf("wordprocessingml.document"), ".docx"},
	{anyOf("ms-excel"), ".xls"},
	{anyOf("spreadsheetml.sheet"), ".xlsx"},
	{anyOf("ms-powerpoint"), ".ppt"},
	{anyOf("presentationml.presentation"), ".pptx"},
	{anyOf("opendocument.text"), ".odt"},
	{anyOf("opendocument.spreadsheet"), ".ods"},
	{anyOf("opendocument.presentation"), ".odp"},
	{anyOf("rtf"), ".rtf"},

	// Text and data.
	{anyOf("plain"), ".txt"},
	{anyOf("html"), ".html"},
	{anyOf("css"), ".css"},
	{anyOf("javascript", "ecmascript"), ".js"},
	{anyOf("json"), ".json"},
	{anyOf("xml"), ".xml"},
	{anyOf("csv"), ".csv"},
	{anyOf("markdown"), ".md"},

	// Images.
	{anyOf("jpeg", "jpg"), ".jpg"},
	{anyOf("png"), ".png"},
	{anyOf("gif"), ".gif"},
	{anyOf("webp"), ".webp"},
	{anyOf("svg"), ".svg"},
	{anyOf("bmp"), ".bmp"},
	{anyOf("tiff"), ".tiff"},
	{anyOf("ico", "icon"), ".ico"},
	{anyOf("heic"), ".heic"},
	{anyOf("heif"), ".heif"},

	// Audio.
	{allOf("mpeg", "audio"), ".mp3"},
	{anyOf("mp3"), ".mp3"},
	{anyOf("wav", "x-wav"), ".wav"},
	{allOf("ogg", "audio"), ".ogg"},
	{anyOf("flac"), ".flac"},
	{anyOf("aac"), ".aac"},
	{anyOf("m4a", "x-m4a"), ".m4a"},
	{anyOf("wma", "x-ms-wma"), ".wma"},
	{anyOf("opus"), ".opus"},
	{anyOf("amr"), ".amr"},

	// Video.
	{anyOf("mp4"), ".mp4"},
	{anyOf("webm"), ".webm"},
	{allOf("ogg", "video"), ".ogv"},
	{anyOf("quicktime"), ".mov"},
	{anyOf("x-msvideo"), ".avi"},
	{anyOf("x-ms-wmv"), ".wmv"},
	{anyOf("x-flv"), ".flv"},
	{anyOf("x-matroska", "mkv"), ".mkv"},
	{allOf("mpeg", "video"), ".mpeg"},
	{anyOf("3gpp"), ".3gp"},
	{anyOf("3gpp2"), ".3g2"},

	// Archives.
	{anyOf("zip", "x-zip-compressed"), ".zip"},
	{anyOf("x-rar-compressed", "x-rar"), ".rar"},
	{anyOf("x-7z-compressed"), ".7z"},
	{anyOf("x-tar"), ".tar"},
	{anyOf("gzip"), ".gz"},
	{anyOf("x-bzip2"), ".bz2"},
	{anyOf("x-xz"), ".xz"},

	// Executables and installers.
	{anyOf("vnd.android.package-archive"), ".apk"},
	{anyOf("x-msdownload", "exe"), ".exe"},
	{anyOf("x-msi"), ".msi"},
	{anyOf("x-deb"), ".deb"},
	{anyOf("x-rpm"), ".rpm"},
	{anyOf("x-sh"), ".sh"},

	// Fonts.
	{anyOf("font-woff"), ".woff"},
	{anyOf("font-woff2"), ".woff2"},
	{anyOf("x-font-ttf", "font-sfnt"), ".ttf"},
	{anyOf("x-font-otf"), ".otf"},
	{anyOf("vnd.ms-fontobject"), ".eot"},

	// E-books.
	{anyOf("epub+zip"), ".epub"},
	{anyOf("x-mobipocket-ebook"), ".mobi"},
	{anyOf("vnd.amazon.ebook"), ".azw"},

	// Professional and niche.
	{anyOf("photoshop", "vnd.adobe.photoshop"), ".psd"},
	{anyOf("illustrator"), ".ai"},
	{anyOf("postscript"), ".ps"},
	{anyOf("acad"), ".dwg"},
	{anyOf("sla"), ".stl"},
	{anyOf("x-sqlite3"), ".sqlite3"},
	{anyOf("sql"), ".sql"},
	{anyOf("x-bittorrent"), ".torrent"},
	{anyOf("gpx+xml"), ".gpx"},
	{anyOf("keychain"), ".key"},
}

// ExtensionFor returns the extension, with its leading dot, for mimeType.
// The ordered table is tried first, then the mimetype registry, then the
// platform's MIME registry. It returns "" when nothing matches.
func ExtensionFor(mimeType string) string {
	m := strings.ToLower(mimeType)
	for _, r := range rules {
		if r.match(m) {
			return r.ext
		}
	}

	return registryExtension(m)
}

func registryExtension(mimeType string) string {
	essence, _, _ := strings.Cut(mimeType, ";")
	essence = strings.TrimSpace(essence)
	if essence == "" {
		return ""
	}

	if mt := mimetype.Lookup(essence); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}

	exts, err := mime.ExtensionsByType(essence)
	if err != nil || len(exts) == 0 {
		return ""
	}

	return exts[0]
}
