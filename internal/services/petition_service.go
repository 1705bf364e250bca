package services

import (
	"strings"
	"time"
)

// PetitionStore abstracts persistence for petitions and signatures.
type PetitionStore interface {
	InsertPetition(p *Petition) error
	GetPetition(id string) (*Petition, error)
	ListPetitions(activeOnly bool) ([]*Petition, error)
	AddSignature(sig *Signature) error
	HasSigned(petitionID, email string) (bool, error)
	CountSignatures(petitionID string) (int, error)
	ListSignatures(petitionID string) ([]*Signature, error)
}

// SignatureRequest carries one signer's details into SignPetition.
type SignatureRequest struct {
	Name      string
	Email     string
	Anonymous bool
}

type PetitionService struct {
	store PetitionStore
	now   func() time.Time
	idGen func(n int) string
}

func NewPetitionService(store PetitionStore) *PetitionService {
	return &PetitionService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: shortID,
	}
}

func (s *PetitionService) CreatePetition(title, summary string) (*Petition, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, NewInvalidError("title required")
	}
	p := &Petition{
		ID:        s.idGen(8),
		Title:     title,
		Summary:   strings.TrimSpace(summary),
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertPetition(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListActivePetitions returns the petitions currently open for signing.
func (s *PetitionService) ListActivePetitions() ([]*Petition, error) {
	return s.store.ListPetitions(true)
}

func (s *PetitionService) GetPetition(id string) (*Petition, error) {
	p, err := s.store.GetPetition(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("petition not found")
	}
	return p, nil
}

// SignPetition records one signature. Duplicate signatures by the same
// email on the same petition are rejected.
func (s *PetitionService) SignPetition(petitionID string, req SignatureRequest) error {
	petitionID = strings.TrimSpace(petitionID)
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if petitionID == "" || name == "" || email == "" {
		return NewInvalidError("petition id, name and email are required")
	}
	if !strings.Contains(email, "@") {
		return NewInvalidError("invalid email address")
	}
	p, err := s.store.GetPetition(petitionID)
	if err != nil {
		return err
	}
	if p == nil {
		return NewNotFoundError("petition not found")
	}
	if !p.Active {
		return NewInvalidError("this petition is closed")
	}
	signed, err := s.store.HasSigned(petitionID, email)
	if err != nil {
		return err
	}
	if signed {
		return NewConflictError("you have already signed this petition")
	}
	return s.store.AddSignature(&Signature{
		ID:         s.idGen(12),
		PetitionID: petitionID,
		Name:       name,
		Email:      email,
		Anonymous:  req.Anonymous,
		SignedAt:   s.now(),
	})
}

func (s *PetitionService) SignatureCount(petitionID string) (int, error) {
	if _, err := s.GetPetition(petitionID); err != nil {
		return 0, err
	}
	return s.store.CountSignatures(petitionID)
}

// ListSignatures returns all signatures for admin export.
func (s *PetitionService) ListSignatures(petitionID string) ([]*Signature, error) {
	if _, err := s.GetPetition(petitionID); err != nil {
		return nil, err
	}
	return s.store.ListSignatures(petitionID)
}
