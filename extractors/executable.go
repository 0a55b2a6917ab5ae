package extractors

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"strings"
)

const (
	maxImportedLibraries = 20
	maxSectionNames      = 10
)

// ExecutableExtractor reads header fields from PE, ELF, and Mach-O binaries.
type ExecutableExtractor struct{}

func (ExecutableExtractor) Name() string { return "executable" }

func (ExecutableExtractor) Extract(content []byte) (feats Features) {
	feats = Features{}
	defer guard(feats)

	switch {
	case bytes.HasPrefix(content, []byte("MZ")):
		extractPE(content, feats)
	case bytes.HasPrefix(content, []byte{0x7F, 'E', 'L', 'F'}):
		extractELF(content, feats)
	case isMachO(content):
		extractMachO(content, feats)
	default:
		feats["parse_error"] = true
	}
	return feats
}

func isMachO(content []byte) bool {
	magics := [][]byte{
		{0xCF, 0xFA, 0xED, 0xFE},
		{0xCE, 0xFA, 0xED, 0xFE},
		{0xFE, 0xED, 0xFA, 0xCE},
		{0xFE, 0xED, 0xFA, 0xCF},
	}
	for _, magic := range magics {
		if bytes.HasPrefix(content, magic) {
			return true
		}
	}
	return false
}

func extractPE(content []byte, feats Features) {
	feats["exe_format"] = "pe"
	f, err := pe.NewFile(bytes.NewReader(content))
	if err != nil {
		feats["parse_error"] = true
		return
	}
	defer f.Close()

	feats["machine"] = int64(f.FileHeader.Machine)
	feats["section_count"] = int64(len(f.Sections))
	feats["section_names"] = sectionNamesPE(f)

	switch opt := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		feats["entry_point"] = int64(opt.AddressOfEntryPoint)
		feats["is_64bit"] = false
	case *pe.OptionalHeader64:
		feats["entry_point"] = int64(opt.AddressOfEntryPoint)
		feats["is_64bit"] = true
	}

	symbols, err := f.ImportedSymbols()
	if err != nil {
		feats["parse_error"] = true
		return
	}
	feats["imported_libraries"] = dllNamesFromSymbols(symbols)
}

func sectionNamesPE(f *pe.File) []string {
	names := make([]string, 0, len(f.Sections))
	for _, section := range f.Sections {
		if len(names) >= maxSectionNames {
			break
		}
		names = append(names, strings.TrimRight(section.Name, "\x00"))
	}
	return names
}

// dllNamesFromSymbols reduces "Func:lib.dll" import symbols to the ordered
// set of library names.
func dllNamesFromSymbols(symbols []string) []string {
	seen := make(map[string]struct{})
	libs := make([]string, 0, 8)
	for _, symbol := range symbols {
		idx := strings.LastIndexByte(symbol, ':')
		if idx < 0 || idx+1 >= len(symbol) {
			continue
		}
		lib := strings.ToLower(symbol[idx+1:])
		if _, dup := seen[lib]; dup {
			continue
		}
		seen[lib] = struct{}{}
		libs = append(libs, lib)
		if len(libs) >= maxImportedLibraries {
			break
		}
	}
	return libs
}

func extractELF(content []byte, feats Features) {
	feats["exe_format"] = "elf"
	f, err := elf.NewFile(bytes.NewReader(content))
	if err != nil {
		feats["parse_error"] = true
		return
	}
	defer f.Close()

	feats["machine"] = int64(f.Machine)
	feats["is_64bit"] = f.Class == elf.ELFCLASS64
	feats["entry_point"] = int64(f.Entry)
	feats["section_count"] = int64(len(f.Sections))

	names := make([]string, 0, maxSectionNames)
	for _, section := range f.Sections {
		if len(names) >= maxSectionNames {
			break
		}
		if section.Name != "" {
			names = append(names, section.Name)
		}
	}
	feats["section_names"] = names

	libs, err := f.ImportedLibraries()
	if err != nil {
		// Static binaries have no dynamic section; not a parse failure.
		libs = nil
	}
	if len(libs) > maxImportedLibraries {
		libs = libs[:maxImportedLibraries]
	}
	feats["imported_libraries"] = libs
}

func extractMachO(content []byte, feats Features) {
	feats["exe_format"] = "macho"
	f, err := macho.NewFile(bytes.NewReader(content))
	if err != nil {
		feats["parse_error"] = true
		return
	}
	defer f.Close()

	feats["machine"] = int64(f.Cpu)
	feats["is_64bit"] = f.Magic == macho.Magic64
	feats["section_count"] = int64(len(f.Sections))

	libs, err := f.ImportedLibraries()
	if err != nil {
		libs = nil
	}
	if len(libs) > maxImportedLibraries {
		libs = libs[:maxImportedLibraries]
	}
	feats["imported_libraries"] = libs
}
