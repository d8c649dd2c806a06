package models

// DownloadOutcome is the single result of one awaited download.
// ActualFileName is set only when the observed file name differs from the expected one.
type DownloadOutcome struct {
	Completed      bool
	ActualFileName string
}

// FileName returns the name of the file that actually arrived
func (o DownloadOutcome) FileName(expected string) string {
	if o.ActualFileName != "" {
		return o.ActualFileName
	}
	return expected
}

// Mismatch reports whether the artifact arrived under an unexpected name
func (o DownloadOutcome) Mismatch() bool {
	return o.Completed && o.ActualFileName != ""
}
