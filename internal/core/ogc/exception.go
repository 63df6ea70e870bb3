package ogc

import (
	"encoding/xml"
	"errors"
	"net/http"

	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
)

type ExceptionCode string

const (
	CodeGeneric               ExceptionCode = ""
	CodeInvalidFormat         ExceptionCode = "InvalidFormat"
	CodeInvalidCRS            ExceptionCode = "InvalidCRS"
	CodeLayerNotDefined       ExceptionCode = "LayerNotDefined"
	CodeStyleNotDefined       ExceptionCode = "StyleNotDefined"
	CodeLayerNotQueryable     ExceptionCode = "LayerNotQueryable"
	CodeInvalidPoint          ExceptionCode = "InvalidPoint"
	CodeCurrentUpdateSequence ExceptionCode = "CurrentUpdateSequence"
	CodeInvalidUpdateSequence ExceptionCode = "InvalidUpdateSequence"
	CodeMissingDimensionValue ExceptionCode = "MissingDimensionValue"
	CodeInvalidDimensionValue ExceptionCode = "InvalidDimensionValue"
	CodeOperationNotSupported ExceptionCode = "OperationNotSupported"
)

const ExceptionContentType = "application/vnd.ogc.se_xml"

// ServiceException is a client facing WMS error. It is reported in the
// response body, not through the HTTP status.
type ServiceException struct {
	Code    ExceptionCode
	Message string
}

func (e *ServiceException) Error() string {
	if e.Code == CodeGeneric {
		return e.Message
	}
	return string(e.Code) + ": " + e.Message
}

func Exception(code ExceptionCode, msg string) *ServiceException {
	return &ServiceException{Code: code, Message: msg}
}

type xmlException struct {
	Code    string `xml:"code,attr,omitempty"`
	Message string `xml:",chardata"`
}

type xmlExceptionReport struct {
	XMLName   xml.Name     `xml:"ServiceExceptionReport"`
	Version   string       `xml:"version,attr"`
	Xmlns     string       `xml:"xmlns,attr"`
	Exception xmlException `xml:"ServiceException"`
}

// WriteException writes err as a ServiceExceptionReport. Service exceptions
// go out with 200 as WMS clients expect; anything else is reported with a
// generic code and 500.
func WriteException(w http.ResponseWriter, err error) {
	var se *ServiceException
	status := http.StatusOK
	if !errors.As(err, &se) {
		se = &ServiceException{Message: http.StatusText(http.StatusInternalServerError)}
		status = http.StatusInternalServerError
	}
	observability.IncOGCException(string(se.Code))

	report := xmlExceptionReport{
		Version:   "1.3.0",
		Xmlns:     "http://www.opengis.net/ogc",
		Exception: xmlException{Code: string(se.Code), Message: se.Message},
	}
	w.Header().Set("Content-Type", ExceptionContentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(report)
}
