package table

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

// FileStatus is the processing state of an uploaded file
type FileStatus string

const (
	StatusUploading FileStatus = "uploading"
	StatusReady     FileStatus = "ready"
	StatusError     FileStatus = "error"
)

// CSVMimeType is the type every processed file is normalised to
const CSVMimeType = "text/csv"

// UploadedFile is one attachment after conversion to CSV text
type UploadedFile struct {
	Name         string     `json:"name"`
	Size         int        `json:"size"`
	Type         string     `json:"type"`
	Status       FileStatus `json:"status"`
	RawContent   string     `json:"raw_content,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// IsSpreadsheet reports whether name has an xls/xlsx extension
func IsSpreadsheet(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls")
}

// IsSupported reports whether a file may enter the pipeline
func IsSupported(name, mimeType string) bool {
	if strings.Contains(mimeType, "sheet") || strings.Contains(mimeType, "csv") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), ".csv") || IsSpreadsheet(name)
}

// ProcessFile converts raw upload bytes into CSV text. Conversion failures are
// reported on the returned file with StatusError rather than as an error, so
// one bad file does not block the others.
func ProcessFile(name, mimeType string, data []byte) UploadedFile {
	file := UploadedFile{
		Name:   name,
		Size:   len(data),
		Type:   mimeType,
		Status: StatusUploading,
	}

	if !IsSupported(name, mimeType) {
		file.Status = StatusError
		file.ErrorMessage = fmt.Sprintf("%v: %s (%s)", ErrUnsupportedFile, name, mimeType)
		return file
	}

	text := string(data)
	if IsSpreadsheet(name) {
		converted, err := SpreadsheetToCSV(name, data)
		if err != nil {
			file.Status = StatusError
			file.ErrorMessage = fileErrorMessage(err)
			return file
		}
		text = converted
	}

	file.Status = StatusReady
	file.Type = CSVMimeType
	file.RawContent = text
	return file
}

// DecodeUpload decodes base64 upload bytes and processes them
func DecodeUpload(name, mimeType, encoded string) UploadedFile {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		readErr := &FileReadError{File: name, Err: fmt.Errorf("%w: %v", ErrFileRead, err)}
		return UploadedFile{
			Name:         name,
			Type:         mimeType,
			Status:       StatusError,
			ErrorMessage: readErr.Error(),
		}
	}
	return ProcessFile(name, mimeType, data)
}

// EmptySpreadsheetMessage is shown for a workbook without sheets or rows
const EmptySpreadsheetMessage = "Spreadsheet is empty."

func fileErrorMessage(err error) string {
	if errors.Is(err, ErrEmptySpreadsheet) {
		return EmptySpreadsheetMessage
	}
	return err.Error()
}

// DefaultFetchMaxBytes caps a download when no limit is configured
const DefaultFetchMaxBytes = 10 << 20

// Fetcher downloads remote files so they can be attached by URL. Only http
// and https URLs resolving to public addresses are fetched.
type Fetcher struct {
	httpClient *resty.Client
}

// NewFetcher creates a Fetcher that reads at most maxBytes per response
// (0 = DefaultFetchMaxBytes)
func NewFetcher(maxBytes int) *Fetcher {
	return newFetcher(maxBytes, rejectInternal)
}

func newFetcher(maxBytes int, control func(network, address string, c syscall.RawConn) error) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultFetchMaxBytes
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   control,
	}

	// no proxy: the dialer must see the real target address
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := resty.New()
	client.SetTransport(transport)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	client.SetResponseBodyLimit(maxBytes)
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(_ *resty.Response, err error) bool {
		var opErr *net.OpError
		return errors.As(err, &opErr) && !errors.Is(err, ErrURLNotAllowed)
	})

	return &Fetcher{httpClient: client}
}

// rejectInternal refuses connections to loopback, private, link-local and
// other non-public addresses. It runs after DNS resolution, for every
// connection including redirects.
func rejectInternal(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrURLNotAllowed, address)
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrURLNotAllowed, host)
	}
	ip = ip.Unmap()

	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrURLNotAllowed, ip)
	}
	return nil
}

func fetchError(name string, err error) UploadedFile {
	return UploadedFile{
		Name:         name,
		Status:       StatusError,
		ErrorMessage: (&FileReadError{File: name, Err: err}).Error(),
	}
}

// Fetch downloads rawURL and processes it like an upload
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) UploadedFile {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fetchError(rawURL, fmt.Errorf("%w: %v", ErrFileRead, err))
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = u.Host
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fetchError(name, fmt.Errorf("%w: scheme %q", ErrURLNotAllowed, u.Scheme))
	}
	if u.Host == "" {
		return fetchError(name, fmt.Errorf("%w: missing host", ErrURLNotAllowed))
	}

	resp, err := f.httpClient.R().
		SetContext(ctx).
		Get(u.String())
	if err != nil {
		return fetchError(name, fmt.Errorf("%w: %w", ErrFileRead, err))
	}

	if resp.StatusCode() != http.StatusOK {
		return fetchError(name, fmt.Errorf("%w: status %d", ErrFileRead, resp.StatusCode()))
	}

	mimeType := resp.Header().Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	return ProcessFile(name, mimeType, resp.Body())
}
