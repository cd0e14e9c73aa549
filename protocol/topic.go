// Package protocol derives the topic names shared by room services and their
// client proxies.
//
// Every topic has the shape <family>_<service>_<member>. Service and member
// identifiers are restricted to ASCII letters and digits, starting with a
// letter, so a topic can always be split back into its three parts and two
// distinct triples never produce the same topic.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Family is a message family.
type Family string

const (
	// FamilyProxyCall carries a client-invoked method call (client → server).
	FamilyProxyCall Family = "proxyCall"
	// FamilyPropUpdate carries the current value of a mirrored property (server → client).
	FamilyPropUpdate Family = "propUpdate"
	// FamilyRequestPropUpdate asks for the current value of a mirrored property (client → server).
	FamilyRequestPropUpdate Family = "requestPropUpdate"
)

const separator = "_"

// ErrConfiguration marks registration mistakes such as a missing or
// malformed service identity. They are fatal for the registering code.
var ErrConfiguration = errors.New("roomsync: configuration error")

// Valid reports whether f is one of the known families.
func (f Family) Valid() bool {
	switch f {
	case FamilyProxyCall, FamilyPropUpdate, FamilyRequestPropUpdate:
		return true
	}
	return false
}

// ValidateIdentifier checks a service or member name.
func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s name is empty", ErrConfiguration, kind)
	}
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("%w: %s name %q must be letters and digits starting with a letter", ErrConfiguration, kind, id)
		}
	}
	return nil
}

// Topic builds the topic for a family, service and member.
func Topic(family Family, service, member string) (string, error) {
	if !family.Valid() {
		return "", fmt.Errorf("%w: unknown message family %q", ErrConfiguration, family)
	}
	if err := ValidateIdentifier("service", service); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("member", member); err != nil {
		return "", err
	}
	return string(family) + separator + service + separator + member, nil
}

func ProxyCallTopic(service, member string) (string, error) {
	return Topic(FamilyProxyCall, service, member)
}

func PropUpdateTopic(service, member string) (string, error) {
	return Topic(FamilyPropUpdate, service, member)
}

func RequestPropUpdateTopic(service, member string) (string, error) {
	return Topic(FamilyRequestPropUpdate, service, member)
}

// MustTopic is like Topic but panics on invalid input. Use it for
// package-level topic declarations.
func MustTopic(family Family, service, member string) string {
	topic, err := Topic(family, service, member)
	if err != nil {
		panic(err)
	}
	return topic
}

// Parse splits a topic into its family, service and member.
func Parse(topic string) (Family, string, string, error) {
	parts := strings.Split(topic, separator)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: malformed topic %q", ErrConfiguration, topic)
	}
	family := Family(parts[0])
	if _, err := Topic(family, parts[1], parts[2]); err != nil {
		return "", "", "", err
	}
	return family, parts[1], parts[2], nil
}
