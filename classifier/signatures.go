package classifier

// signature is a fixed byte sequence at a known offset identifying a format.
type signature struct {
	prefix   []byte
	offset   int
	category Category
	detailed string
	mime     string
}

// signatureTable covers the formats triage cares about. The header window read
// by the pipeline must be at least as long as the longest offset+prefix here.
var signatureTable = []signature{
	// Executables
	{[]byte("MZ"), 0, CategoryExecutable, "PE executable (Windows)", "application/vnd.microsoft.portable-executable"},
	{[]byte{0x7F, 'E', 'L', 'F'}, 0, CategoryExecutable, "ELF executable (Linux/Unix)", "application/x-executable"},
	{[]byte{0xCF, 0xFA, 0xED, 0xFE}, 0, CategoryExecutable, "Mach-O executable (macOS)", "application/x-mach-binary"},
	{[]byte{0xCE, 0xFA, 0xED, 0xFE}, 0, CategoryExecutable, "Mach-O executable (macOS)", "application/x-mach-binary"},
	{[]byte{0xFE, 0xED, 0xFA, 0xCE}, 0, CategoryExecutable, "Mach-O executable (macOS)", "application/x-mach-binary"},
	{[]byte{0xFE, 0xED, 0xFA, 0xCF}, 0, CategoryExecutable, "Mach-O executable (macOS)", "application/x-mach-binary"},

	// Archives
	{[]byte("PK\x03\x04"), 0, CategoryArchive, "ZIP archive", "application/zip"},
	{[]byte("PK\x05\x06"), 0, CategoryArchive, "ZIP archive (empty)", "application/zip"},
	{[]byte("PK\x07\x08"), 0, CategoryArchive, "ZIP archive (spanned)", "application/zip"},
	{[]byte("Rar!\x1a\x07"), 0, CategoryArchive, "RAR archive", "application/vnd.rar"},
	{[]byte{0x1F, 0x8B}, 0, CategoryArchive, "GZIP archive", "application/gzip"},
	{[]byte("BZh"), 0, CategoryArchive, "BZIP2 archive", "application/x-bzip2"},
	{[]byte("7z\xbc\xaf\x27\x1c"), 0, CategoryArchive, "7-Zip archive", "application/x-7z-compressed"},
	{[]byte("ustar"), 257, CategoryArchive, "TAR archive", "application/x-tar"},

	// Documents
	{[]byte("%PDF"), 0, CategoryDocument, "PDF document", "application/pdf"},
	{[]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, 0, CategoryDocument, "MS Office document (legacy)", "application/x-ole-storage"},
	{[]byte("{\\rtf"), 0, CategoryDocument, "RTF document", "application/rtf"},

	// Images
	{[]byte{0xFF, 0xD8, 0xFF}, 0, CategoryImage, "JPEG image", "image/jpeg"},
	{[]byte("\x89PNG\r\n\x1a\n"), 0, CategoryImage, "PNG image", "image/png"},
	{[]byte("GIF87a"), 0, CategoryImage, "GIF image", "image/gif"},
	{[]byte("GIF89a"), 0, CategoryImage, "GIF image", "image/gif"},
	{[]byte("BM"), 0, CategoryImage, "BMP image", "image/bmp"},
	{[]byte("II*\x00"), 0, CategoryImage, "TIFF image", "image/tiff"},
	{[]byte("MM\x00*"), 0, CategoryImage, "TIFF image", "image/tiff"},

	// Scripts
	{[]byte("#!/"), 0, CategoryScript, "Shell script (shebang)", "text/x-shellscript"},

	// Media
	{[]byte("ID3"), 0, CategoryMedia, "MP3 audio", "audio/mpeg"},
	{[]byte("OggS"), 0, CategoryMedia, "OGG media", "audio/ogg"},
	{[]byte("fLaC"), 0, CategoryMedia, "FLAC audio", "audio/flac"},
	{[]byte("RIFF"), 0, CategoryMedia, "RIFF media container", "audio/x-wav"},
	{[]byte("ftyp"), 4, CategoryMedia, "MP4 media container", "video/mp4"},
}

// ooxmlMimes are ZIP-container office formats that the content probe can
// distinguish from plain archives.
var ooxmlMimes = map[string]string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "DOCX document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "XLSX document",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "PPTX document",
}

// extensionCategories maps attacker-controlled extensions to a best-guess
// category; used only as the lowest-confidence fallback.
var extensionCategories = map[string]Category{
	"exe": CategoryExecutable, "dll": CategoryExecutable, "so": CategoryExecutable,
	"dylib": CategoryExecutable, "com": CategoryExecutable,

	"pdf": CategoryDocument, "doc": CategoryDocument, "docx": CategoryDocument,
	"xls": CategoryDocument, "xlsx": CategoryDocument, "ppt": CategoryDocument,
	"pptx": CategoryDocument, "txt": CategoryDocument, "rtf": CategoryDocument,
	"odt": CategoryDocument,

	"zip": CategoryArchive, "rar": CategoryArchive, "tar": CategoryArchive,
	"gz": CategoryArchive, "bz2": CategoryArchive, "7z": CategoryArchive,
	"tgz": CategoryArchive,

	"jpg": CategoryImage, "jpeg": CategoryImage, "png": CategoryImage,
	"gif": CategoryImage, "bmp": CategoryImage, "tiff": CategoryImage,
	"ico": CategoryImage, "svg": CategoryImage,

	"bat": CategoryScript, "cmd": CategoryScript, "sh": CategoryScript,
	"ps1": CategoryScript, "py": CategoryScript, "js": CategoryScript,
	"rb": CategoryScript, "pl": CategoryScript, "php": CategoryScript,
	"vbs": CategoryScript,

	"mp3": CategoryMedia, "mp4": CategoryMedia, "avi": CategoryMedia,
	"mov": CategoryMedia, "wmv": CategoryMedia, "wav": CategoryMedia,
	"flac": CategoryMedia,
}
