package as02

import (
	"crypto/rand"
	"errors"

	"github.com/phastphill/asdcplib/mdstore"
	"github.com/phastphill/asdcplib/mxf"
)

var errShortRecord = errors.New("as02: header metadata record too short for its type")

// newUUID fills a fresh instance identifier. The pack carries no UUID
// library (see DESIGN.md); crypto/rand is the stdlib primitive the teacher
// itself reaches for whenever OpenEXR needs random bytes (see exrid's
// hashing use of crypto/sha1 for the same "no ecosystem alternative"
// reason), so it is used directly rather than hand-rolling weaker entropy.
func newUUID() mdstore.UUID {
	var u mdstore.UUID
	_, _ = rand.Read(u[:])
	return u
}

// marshalObject dispatches an as02 object to its tag and wire payload for
// mxf.WriteHeaderMetadata.
func marshalObject(obj mdstore.Object) (byte, []byte, error) {
	switch o := obj.(type) {
	case *IABEssenceDescriptor:
		return tagIABEssenceDescriptor, o.marshal(), nil
	case *IABSoundfieldLabelSubDescriptor:
		return tagIABSoundfieldLabelSubDescriptor, o.marshal(), nil
	case *StaticTrack:
		return tagStaticTrack, o.marshal(), nil
	case *Sequence:
		return tagSequence, o.marshal(), nil
	case *DMSegment:
		return tagDMSegment, o.marshal(), nil
	case *TextBasedDMFramework:
		return tagTextBasedDMFramework, o.marshal(), nil
	case *GenericStreamTextBasedSet:
		return tagGenericStreamTextBasedSet, o.marshal(), nil
	default:
		return 0, nil, errors.New("as02: unknown object type")
	}
}

// encodeHeaderMetadata serializes every object the store holds into one
// mxf.HeaderMetadataRecord stream, each record's InstanceUID prefixed to its
// type-specific payload so decodeHeaderMetadata can reconstruct identity.
func encodeHeaderMetadata(objs []mdstore.Object) ([]mxf.HeaderMetadataRecord, error) {
	records := make([]mxf.HeaderMetadataRecord, 0, len(objs))
	for _, obj := range objs {
		tag, body, err := marshalObject(obj)
		if err != nil {
			return nil, err
		}
		id := obj.InstanceUID()
		payload := make([]byte, 0, 16+len(body))
		payload = append(payload, id[:]...)
		payload = append(payload, body...)
		records = append(records, mxf.HeaderMetadataRecord{Tag: tag, Payload: payload})
	}
	return records, nil
}

// decodeHeaderMetadata reconstructs a Store from the raw records a
// mxf.Reader parsed out of the Header Partition.
func decodeHeaderMetadata(records []mxf.HeaderMetadataRecord) (*mdstore.Store, error) {
	store := mdstore.New()
	for _, rec := range records {
		if len(rec.Payload) < 16 {
			return nil, errShortRecord
		}
		var id mdstore.UUID
		copy(id[:], rec.Payload[:16])
		body := rec.Payload[16:]

		var obj mdstore.Object
		var err error
		switch rec.Tag {
		case tagIABEssenceDescriptor:
			obj, err = unmarshalIABEssenceDescriptor(id, body)
		case tagIABSoundfieldLabelSubDescriptor:
			obj, err = unmarshalIABSoundfieldLabelSubDescriptor(id, body)
		case tagStaticTrack:
			obj, err = unmarshalStaticTrack(id, body)
		case tagSequence:
			obj, err = unmarshalSequence(id, body)
		case tagDMSegment:
			obj, err = unmarshalDMSegment(id, body)
		case tagTextBasedDMFramework:
			obj, err = unmarshalTextBasedDMFramework(id, body)
		case tagGenericStreamTextBasedSet:
			obj, err = unmarshalGenericStreamTextBasedSet(id, body)
		default:
			continue // unknown tag: forward-compatible skip
		}
		if err != nil {
			return nil, err
		}
		store.Add(obj)
	}
	return store, nil
}
