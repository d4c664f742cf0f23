package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")
	ErrCursorRewind = errors.New("el NSU no puede retroceder")
)

// Clases de error de la importación. Cada tipo concreto de abajo hace Unwrap a su clase.
var (
	ErrCredential        = errors.New("credencial no configurada")
	ErrCertificateFormat = errors.New("certificado con formato inválido")
	ErrRemoteService     = errors.New("falla en el servicio de la SEFAZ")
	ErrDecode            = errors.New("documento distribuido corrupto")
	ErrOperation         = errors.New("operación no realizable")
)

// CredentialError no hay certificado o contraseña configurados para la filial.
type CredentialError struct {
	BranchID string
	Reason   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credencial de la filial %s: %s", e.BranchID, e.Reason)
}

func (e *CredentialError) Unwrap() error { return ErrCredential }

// FormatError el contenedor PKCS#12 no se pudo abrir (bytes inválidos o contraseña incorrecta).
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("certificado inválido: %v", e.Err)
}

func (e *FormatError) Unwrap() []error { return []error{ErrCertificateFormat, e.Err} }

// RemoteServiceError falla de red o de protocolo al hablar con la SEFAZ.
// Status lleva el cStat cuando la respuesta llegó pero fue un rechazo.
type RemoteServiceError struct {
	Operation string
	Status    string
	Message   string
	Err       error
}

func (e *RemoteServiceError) Error() string {
	switch {
	case e.Status != "":
		return fmt.Sprintf("sefaz %s: cStat %s: %s", e.Operation, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("sefaz %s: %v", e.Operation, e.Err)
	default:
		return fmt.Sprintf("sefaz %s: %s", e.Operation, e.Message)
	}
}

func (e *RemoteServiceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRemoteService, e.Err}
	}
	return []error{ErrRemoteService}
}

// DecodeError un docZip no se pudo decodificar; se descarta solo ese documento.
type DecodeError struct {
	NSU    string
	Schema string
	Stage  string // base64, gzip, charset
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("docZip NSU %s (%s): etapa %s: %v", e.NSU, e.Schema, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// OperationError la operación no puede ejecutarse con los datos del registro (p. ej. sin chave).
type OperationError struct {
	Operation string
	Reason    string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

func (e *OperationError) Unwrap() error { return ErrOperation }
