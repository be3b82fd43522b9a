// Package document holds the DID document shape spec.md §3 names
// (public_keys[], service_endpoints[]) and the DocumentComposer of §4.4.
// Grounded on the teacher's pkg/did/document.go for the type shapes, and
// on the patch-applying switch duplicated across pkg/did/processor.go's
// processUpdate/processRecover and pkg/did/update.go for Composer.Apply,
// here collapsed into one function called from every site that needs it.
package document

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/didresolve/sidetree-resolver/pkg/jwk"
)

var validate = validator.New()

// Document is the resolved state's document: public keys and service
// endpoints, nothing more — spec.md §3 names exactly these two.
type Document struct {
	PublicKeys       []PublicKey       `json:"public_keys,omitempty"`
	ServiceEndpoints []ServiceEndpoint `json:"service_endpoints,omitempty"`
}

// Clone returns a deep-enough copy for patch application to mutate
// without aliasing the caller's slices.
func (d *Document) Clone() *Document {
	if d == nil {
		return &Document{}
	}
	out := &Document{
		PublicKeys:       make([]PublicKey, len(d.PublicKeys)),
		ServiceEndpoints: make([]ServiceEndpoint, len(d.ServiceEndpoints)),
	}
	copy(out.PublicKeys, d.PublicKeys)
	copy(out.ServiceEndpoints, d.ServiceEndpoints)
	return out
}

// PublicKey is a key entry in a document's public_keys array.
type PublicKey struct {
	ID           string   `json:"id" validate:"required"`
	Type         string   `json:"type" validate:"required"`
	PublicKeyJwk *jwk.JWK `json:"public_key_jwk" validate:"required"`
}

// ServiceEndpoint is an entry in a document's service_endpoints array.
type ServiceEndpoint struct {
	ID              string `json:"id" validate:"required"`
	Type            string `json:"type" validate:"required"`
	ServiceEndpoint string `json:"service_endpoint" validate:"required"`
}

// Patch actions, spec.md §4.4.
const (
	ActionReplace              = "replace"
	ActionAddPublicKeys        = "add_public_keys"
	ActionRemovePublicKeys     = "remove_public_keys"
	ActionAddServiceEndpoints  = "add_service_endpoints"
	ActionRemoveServiceEndpoints = "remove_service_endpoints"
)

// Patch is one entry of a delta's patches list. Only the fields relevant
// to Action are populated by a well-formed patch.
type Patch struct {
	Action            string            `json:"action" validate:"required"`
	Document          *Document         `json:"document,omitempty"`
	PublicKeys        []PublicKey       `json:"public_keys,omitempty"`
	PublicKeyIDs      []string          `json:"public_key_ids,omitempty"`
	ServiceEndpoints  []ServiceEndpoint `json:"service_endpoints,omitempty"`
	ServiceEndpointIDs []string         `json:"service_endpoint_ids,omitempty"`
}

// Composer applies delta patch lists to a document per spec.md §4.4.
type Composer struct{}

// NewComposer returns the zero-value Composer; it holds no state.
func NewComposer() *Composer { return &Composer{} }

// Apply applies patches in order to a clone of base and returns the
// result. Any invalid patch — bad id, duplicate id, malformed key
// material — aborts the whole delta and returns an error; spec.md §4.4
// says the operation becomes a no-op on state when this happens, but
// that commitments still advance. Apply itself only decides compose
// success/failure; advancing commitments regardless is the processor's
// responsibility (spec.md §4.5), not this package's.
func (c *Composer) Apply(base *Document, patches []Patch) (*Document, error) {
	doc := base.Clone()

	for i, p := range patches {
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}

		switch p.Action {
		case ActionReplace:
			if p.Document == nil {
				return nil, fmt.Errorf("patch %d: replace requires document", i)
			}
			doc = p.Document.Clone()

		case ActionAddPublicKeys:
			for _, pk := range p.PublicKeys {
				if err := validate.Struct(pk); err != nil {
					return nil, fmt.Errorf("patch %d: invalid public key: %w", i, err)
				}
				if indexOfPublicKey(doc.PublicKeys, pk.ID) >= 0 {
					return nil, fmt.Errorf("patch %d: duplicate public key id %q", i, pk.ID)
				}
				doc.PublicKeys = append(doc.PublicKeys, pk)
			}

		case ActionRemovePublicKeys:
			for _, id := range p.PublicKeyIDs {
				idx := indexOfPublicKey(doc.PublicKeys, id)
				if idx < 0 {
					return nil, fmt.Errorf("patch %d: unknown public key id %q", i, id)
				}
				doc.PublicKeys = append(doc.PublicKeys[:idx], doc.PublicKeys[idx+1:]...)
			}

		case ActionAddServiceEndpoints:
			for _, svc := range p.ServiceEndpoints {
				if err := validate.Struct(svc); err != nil {
					return nil, fmt.Errorf("patch %d: invalid service endpoint: %w", i, err)
				}
				if indexOfServiceEndpoint(doc.ServiceEndpoints, svc.ID) >= 0 {
					return nil, fmt.Errorf("patch %d: duplicate service endpoint id %q", i, svc.ID)
				}
				doc.ServiceEndpoints = append(doc.ServiceEndpoints, svc)
			}

		case ActionRemoveServiceEndpoints:
			for _, id := range p.ServiceEndpointIDs {
				idx := indexOfServiceEndpoint(doc.ServiceEndpoints, id)
				if idx < 0 {
					return nil, fmt.Errorf("patch %d: unknown service endpoint id %q", i, id)
				}
				doc.ServiceEndpoints = append(doc.ServiceEndpoints[:idx], doc.ServiceEndpoints[idx+1:]...)
			}

		default:
			return nil, fmt.Errorf("patch %d: unknown action %q", i, p.Action)
		}
	}

	return doc, nil
}

func indexOfPublicKey(keys []PublicKey, id string) int {
	for i, k := range keys {
		if k.ID == id {
			return i
		}
	}
	return -1
}

func indexOfServiceEndpoint(svcs []ServiceEndpoint, id string) int {
	for i, s := range svcs {
		if s.ID == id {
			return i
		}
	}
	return -1
}
