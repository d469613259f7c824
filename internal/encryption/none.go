package encryption

import "io"

// NoneEncryptor passes exports through unchanged. Used when export
// encryption is disabled.
type NoneEncryptor struct{}

var _ Encryptor = (*NoneEncryptor)(nil)

func NewNoneEncryptor() *NoneEncryptor { return &NoneEncryptor{} }

func (*NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (*NoneEncryptor) Suffix() string { return "" }
