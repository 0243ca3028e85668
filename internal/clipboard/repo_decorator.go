package clipboard

import (
	"fmt"

	"go.klb.dev/unisync/internal/security"
	"go.klb.dev/unisync/internal/ucerrors"
)

// EncryptingRepresentationRepository decorates a RepresentationRepository so
// that callers always see plaintext InlineData: on read, if InlineData is
// present it is deserialized as an EncryptedBlob and decrypted with the
// inline AAD; BlobID-backed representations pass through untouched.
//
// Encryption on the write side happens once, at capture time (Capture.Run
// calls security.Seal directly with the same AAD before the representation
// is ever persisted) rather than inside this decorator, since insertion is
// part of the event repository's single transaction, not a standalone
// representation write. EncryptInline below produces the same encoding
// (security.Seal with AADInline, then encodeBlob) for callers outside
// Capture.
type EncryptingRepresentationRepository struct {
	Inner   RepresentationRepository
	Session *security.Session
}

func NewEncryptingRepresentationRepository(inner RepresentationRepository, session *security.Session) *EncryptingRepresentationRepository {
	return &EncryptingRepresentationRepository{Inner: inner, Session: session}
}

func (d *EncryptingRepresentationRepository) GetRepresentation(eventID, repID string) (Representation, error) {
	rep, err := d.Inner.GetRepresentation(eventID, repID)
	if err != nil {
		return Representation{}, err
	}
	if len(rep.InlineData) == 0 {
		return rep, nil
	}
	if !d.Session.IsReady() {
		return Representation{}, fmt.Errorf("%w: cannot decrypt inline representation", ucerrors.ErrLocked)
	}
	mk, err := d.Session.GetMasterKey()
	if err != nil {
		return Representation{}, fmt.Errorf("%w: %v", ucerrors.ErrLocked, err)
	}
	blob, err := decodeBlob(rep.InlineData)
	if err != nil {
		return Representation{}, fmt.Errorf("%w: %v", ucerrors.ErrCorruptedBlob, err)
	}
	plain, err := security.Open(mk, blob, security.AADInline(eventID, repID))
	if err != nil {
		return Representation{}, err
	}
	rep.InlineData = plain
	return rep, nil
}

func (d *EncryptingRepresentationRepository) UpdateBlobID(eventID, repID, blobID string) error {
	return d.Inner.UpdateBlobID(eventID, repID, blobID)
}

func (d *EncryptingRepresentationRepository) UpdateBlobIDIfNone(eventID, repID, blobID string) (bool, error) {
	return d.Inner.UpdateBlobIDIfNone(eventID, repID, blobID)
}

func (d *EncryptingRepresentationRepository) UpdateProcessingResult(eventID, repID string, expected []PayloadState, blobID string, newState PayloadState, lastError string) (ProcessingResult, error) {
	return d.Inner.UpdateProcessingResult(eventID, repID, expected, blobID, newState, lastError)
}

// EncryptInline seals plaintext under the session's master key with the
// standard inline AAD and returns its persisted encoding, the same encoding
// Capture.Run writes for inline representations.
func EncryptInline(session *security.Session, eventID, repID string, plaintext []byte) ([]byte, error) {
	mk, err := session.GetMasterKey()
	if err != nil {
		return nil, err
	}
	blob, err := security.Seal(mk, plaintext, security.AADInline(eventID, repID))
	if err != nil {
		return nil, err
	}
	return encodeBlob(blob)
}
