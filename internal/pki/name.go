package pki

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// attributeTypes maps RFC 4514 attribute short names to their OIDs.
var attributeTypes = map[string]asn1.ObjectIdentifier{
	"CN":           {2, 5, 4, 3},
	"SERIALNUMBER": {2, 5, 4, 5},
	"C":            {2, 5, 4, 6},
	"L":            {2, 5, 4, 7},
	"ST":           {2, 5, 4, 8},
	"S":            {2, 5, 4, 8},
	"STREET":       {2, 5, 4, 9},
	"O":            {2, 5, 4, 10},
	"OU":           {2, 5, 4, 11},
	"POSTALCODE":   {2, 5, 4, 17},
	"E":            {1, 2, 840, 113549, 1, 9, 1},
	"EMAILADDRESS": {1, 2, 840, 113549, 1, 9, 1},
	"UID":          {0, 9, 2342, 19200300, 100, 1, 1},
	"DC":           {0, 9, 2342, 19200300, 100, 1, 25},
}

// Name is a parsed distinguished name.
type Name struct {
	rdns pkix.RDNSequence
	raw  []byte
}

// ParseName parses an RFC 4514 string such as "CN=Example,O=Acme".
func ParseName(dn string) (*Name, error) {
	if strings.TrimSpace(dn) == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidName)
	}

	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidName, dn, err)
	}
	if len(parsed.RDNs) == 0 {
		return nil, fmt.Errorf("%w: %q has no attributes", ErrInvalidName, dn)
	}

	// The string form lists the most specific RDN first, the encoding stores it last.
	rdns := make(pkix.RDNSequence, 0, len(parsed.RDNs))
	for i := len(parsed.RDNs) - 1; i >= 0; i-- {
		rdn := parsed.RDNs[i]
		set := make(pkix.RelativeDistinguishedNameSET, 0, len(rdn.Attributes))
		for _, attr := range rdn.Attributes {
			oid, err := attributeType(attr.Type)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidName, dn, err)
			}
			set = append(set, pkix.AttributeTypeAndValue{Type: oid, Value: attr.Value})
		}
		rdns = append(rdns, set)
	}

	raw, err := asn1.Marshal(rdns)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidName, dn, err)
	}

	return &Name{rdns: rdns, raw: raw}, nil
}

// String returns the canonical RFC 4514 form.
func (n *Name) String() string {
	return n.rdns.String()
}

// Raw returns the DER encoded RDN sequence.
func (n *Name) Raw() []byte {
	return n.raw
}

// CanonicalName parses dn and returns its canonical string form.
func CanonicalName(dn string) (string, error) {
	name, err := ParseName(dn)
	if err != nil {
		return "", err
	}
	return name.String(), nil
}

// formatRawName renders a DER encoded name without reordering its attributes.
func formatRawName(raw []byte) (string, error) {
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(raw, &rdns)
	if err != nil {
		return "", fmt.Errorf("%w: name: %w", ErrParse, err)
	}
	if len(rest) > 0 {
		return "", fmt.Errorf("%w: trailing data after name", ErrParse)
	}
	return rdns.String(), nil
}

func attributeType(t string) (asn1.ObjectIdentifier, error) {
	if oid, ok := attributeTypes[strings.ToUpper(t)]; ok {
		return oid, nil
	}

	// dotted OID form, e.g. 2.5.4.3=Example
	parts := strings.Split(t, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("unknown attribute type %q", t)
	}
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("unknown attribute type %q", t)
		}
		oid[i] = v
	}
	return oid, nil
}
