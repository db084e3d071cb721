package outbound

type PasswordService interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, digest string) bool
}
