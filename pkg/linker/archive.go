package linker

import (
	"strconv"
	"strings"

	"github.com/Keruspe/mold/internal/errs"
)

// Archive member header layout, common ar(5) format: a 60-byte
// fixed-field header followed by the member's data, padded to an even
// boundary. Two special member names carry metadata rather than object
// content: "/" (or "/SYM64/") is the archive symbol table, and "//" is
// the GNU long-name string table that "/N" names index into (spec §4.1:
// "the special entries (/, //) for the symbol table and long-name
// table").
const arHeaderSize = 60

// readArchiveMembers parses a regular (fat) ar archive into its member
// MemoryMappedFiles, resolving GNU long names via the "//" table and
// skipping the "/" symbol-table pseudo-member — grounded on the
// dongAxis-rvld clone's ReadFatArchiveMembers, generalized from its
// Mach-O-only special case to the general System V ar layout spec §4.1
// describes.
func readArchiveMembers(parent *MemoryMappedFile) ([]*MemoryMappedFile, error) {
	data := parent.Bytes
	if !strings.HasPrefix(string(data), archMagic) {
		return nil, errs.NewFatalInput(parent.Name, errMalformedArchive)
	}
	data = data[len(archMagic):]

	var longNames []byte
	var members []*MemoryMappedFile

	for len(data) > 0 {
		if len(data) < arHeaderSize {
			break
		}
		hdr := data[:arHeaderSize]
		body := data[arHeaderSize:]

		sizeStr := strings.TrimSpace(string(hdr[48:58]))
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, errs.NewFatalInput(parent.Name, errMalformedArchive)
		}
		if size > len(body) {
			return nil, errs.NewFatalInput(parent.Name, errMalformedArchive)
		}

		name := strings.TrimRight(string(hdr[0:16]), " ")
		content := body[:size]

		switch {
		case name == "/" || name == "/SYM64/":
			// Archive symbol table: not needed, the resolver/liveness
			// fixed point achieves the same effect by scanning every
			// member directly.
		case name == "//":
			longNames = content
		case strings.HasPrefix(name, "/"):
			off, err := strconv.Atoi(strings.TrimSuffix(name[1:], "/"))
			if err != nil || off < 0 || off > len(longNames) {
				return nil, errs.NewFatalInput(parent.Name, errMalformedArchive)
			}
			end := off
			for end < len(longNames) && longNames[end] != '\n' {
				end++
			}
			members = append(members, &MemoryMappedFile{
				Name:   strings.TrimRight(string(longNames[off:end]), "/"),
				Mtime:  parent.Mtime,
				Bytes:  content,
				Parent: parent,
			})
		default:
			members = append(members, &MemoryMappedFile{
				Name:   strings.TrimSuffix(name, "/"),
				Mtime:  parent.Mtime,
				Bytes:  content,
				Parent: parent,
			})
		}

		// Members are padded to an even offset.
		consumed := arHeaderSize + size
		if size%2 != 0 {
			consumed++
		}
		if consumed > len(data) {
			break
		}
		data = data[consumed:]
	}

	return members, nil
}

// readThinArchiveMembers parses a thin archive (!<thin>\n): each member
// header names a file on disk rather than embedding its bytes (spec
// §4.1: "Thin archives produce filesystem references that are then
// mapped").
func (ctx *Context) readThinArchiveMembers(parent *MemoryMappedFile, dir string) ([]*MemoryMappedFile, error) {
	data := parent.Bytes
	if !strings.HasPrefix(string(data), thinArchMagic) {
		return nil, errs.NewFatalInput(parent.Name, errMalformedArchive)
	}
	data = data[len(thinArchMagic):]

	var longNames []byte
	var members []*MemoryMappedFile

	for len(data) > 0 {
		if len(data) < arHeaderSize {
			break
		}
		hdr := data[:arHeaderSize]
		body := data[arHeaderSize:]
		sizeStr := strings.TrimSpace(string(hdr[48:58]))
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, errs.NewFatalInput(parent.Name, errMalformedArchive)
		}
		if size > len(body) {
			return nil, errs.NewFatalInput(parent.Name, errMalformedArchive)
		}

		name := strings.TrimRight(string(hdr[0:16]), " ")
		switch {
		case name == "/" || name == "/SYM64/":
			// Thin archives still embed the symbol table inline.
		case name == "//":
			longNames = body[:size]
		case strings.HasPrefix(name, "/"):
			off, _ := strconv.Atoi(strings.TrimSuffix(name[1:], "/"))
			end := off
			for end < len(longNames) && longNames[end] != '\n' {
				end++
			}
			memberPath := dir + "/" + strings.TrimRight(string(longNames[off:end]), "/")
			mf, err := ctx.OpenFile(memberPath)
			if err != nil {
				return nil, err
			}
			members = append(members, mf)
		default:
			memberPath := dir + "/" + strings.TrimSuffix(name, "/")
			mf, err := ctx.OpenFile(memberPath)
			if err != nil {
				return nil, err
			}
			members = append(members, mf)
		}

		// Thin-archive headers still carry a size field even though the
		// member data itself lives in the referenced file, not here; the
		// special "/" and "//" tables are the exception and really do
		// embed their content inline.
		consumed := arHeaderSize
		if name == "/" || name == "/SYM64/" || name == "//" {
			consumed += size
			if size%2 != 0 {
				consumed++
			}
		}
		if consumed > len(data) {
			break
		}
		data = data[consumed:]
	}

	return members, nil
}

type archiveError string

func (e archiveError) Error() string { return string(e) }

const errMalformedArchive = archiveError("malformed archive")
