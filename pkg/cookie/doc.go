// Package cookie sets and reads HTTP cookies with optional HMAC signing or
// AES-GCM encryption, and carries one-shot flash values between requests.
//
// Secrets are supplied in rotation order: the first one signs and encrypts,
// every one is tried when verifying or decrypting.
//
//	cm, err := cookie.New([]string{os.Getenv("COOKIE_SECRET")}, cookie.WithSecure(true))
//	_ = cm.SetFlash(w, "toasts", []toast.Flash{{Message: "Saved", Category: "success"}})
//	var flashes []toast.Flash
//	_ = cm.GetFlash(w, r, "toasts", &flashes)
package cookie
