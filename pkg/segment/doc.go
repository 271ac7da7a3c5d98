// Package segment reads and writes the sealed value-log segments of FreyjaDB.
//
// A segment is written once by a Writer and never modified after Seal. Any
// number of Readers may then scan it, each with its own file handle, without
// any coordination. Nothing in this package locks on the read path; that only
// holds because sealed files are never mutated, so code that appends to a
// sealed segment breaks every concurrent reader.
//
// # Segment Format
//
// A segment is zero or more record blocks followed by exactly one footer:
//
//	record := RecordMagic(4) CRC32(4) KeyLen(2) Key ValueLen(4) Value
//	footer := FooterMagic(4) payload
//	file   := record* footer EOF
//
// All integers are big-endian. CRC32 is the IEEE checksum of the key followed
// by the stored value; see Checksum. The footer payload is described on
// Footer.
//
// # Decoding
//
// Reader.Next has three outcomes: a record, io.EOF, or an error. io.EOF is
// returned when the footer magic is read and also when the stream simply runs
// out, whether that happens at a block boundary or in the middle of a block
// left by a torn write. Only a complete leading token that matches neither
// magic is reported as corruption, as a *HeaderError.
//
// The reader does not verify checksums, does not check key order and does not
// seek once it has started. Record.Verify and the scan package do the
// checking.
//
// # Usage
//
//	r, err := segment.Open(path, id)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    rec, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    index.Add(rec.Key, rec.Offset)
//	}
//
//	if r.FooterReached() {
//	    footer, err := segment.ReadFooterAt(path, r.Offset())
//	    ...
//	}
package segment
