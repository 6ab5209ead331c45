// Package security defines the contract between a GeoNetworking router and its security
// entity, a secured message envelope and two entities implementing it.
package security

import (
	"fmt"
	"time"
)

// ItsAid identifies the ITS application a secured message belongs to.
type ItsAid uint32

const (
	AidCa     ItsAid = 36
	AidDen    ItsAid = 37
	AidGnMgmt ItsAid = 141
)

// DecapReport is the verdict of a security entity about an incoming message.
type DecapReport uint8

const (
	Success DecapReport = iota
	FalseSignature
	InvalidCertificate
	RevokedCertificate
	InconsistentChain
	InvalidTimestamp
	DuplicateMessage
	InvalidMobilityData
	UnsignedMessage
	SignerCertificateNotFound
	UnsupportedSignerIdentifierType
	IncompatibleProtocol
	UnencryptedMessage
	DecryptionError
)

var reportNames = [...]string{
	Success:                         "success",
	FalseSignature:                  "false_signature",
	InvalidCertificate:              "invalid_certificate",
	RevokedCertificate:              "revoked_certificate",
	InconsistentChain:               "inconsistent_chain",
	InvalidTimestamp:                "invalid_timestamp",
	DuplicateMessage:                "duplicate_message",
	InvalidMobilityData:             "invalid_mobility_data",
	UnsignedMessage:                 "unsigned_message",
	SignerCertificateNotFound:       "signer_certificate_not_found",
	UnsupportedSignerIdentifierType: "unsupported_signer_identifier_type",
	IncompatibleProtocol:            "incompatible_protocol",
	UnencryptedMessage:              "unencrypted_message",
	DecryptionError:                 "decryption_error",
}

func (r DecapReport) String() string {
	if int(r) < len(reportNames) {
		return reportNames[r]
	}
	return fmt.Sprintf("invalid(%d)", uint8(r))
}

// SoftFailure reports whether a router with non-strict decapsulation handling may keep
// processing a message despite r.
func (r DecapReport) SoftFailure() bool {
	switch r {
	case DuplicateMessage, IncompatibleProtocol, DecryptionError:
		return false
	}
	return int(r) < len(reportNames)
}

type EncapRequest struct {
	Aid       ItsAid
	Plaintext []byte
}

type EncapConfirm struct {
	Message *SecuredMessage
}

type DecapRequest struct {
	Message *SecuredMessage
}

// DecapConfirm carries the recovered plaintext, which is set even when the report is a
// failure so that non-strict routers can continue.
type DecapConfirm struct {
	Report    DecapReport
	Aid       ItsAid
	Plaintext []byte
	Generated time.Time
}

// Entity signs outgoing and verifies incoming GeoNetworking packets. The plaintext is
// the Common Header followed by the Extended Header and the payload.
type Entity interface {
	EncapsulatePacket(req EncapRequest) (EncapConfirm, error)
	DecapsulatePacket(req DecapRequest) DecapConfirm
}
