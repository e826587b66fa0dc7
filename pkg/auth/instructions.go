package auth

import (
	"fmt"
	"io"
	"strings"
)

// APIKeyURL is where e621 users manage their API keys
const APIKeyURL = "https://e621.net/users/home"

// ShowAPIKeyGuide explains how to obtain an e621 API key
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "e621 API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Most pools download without logging in. Credentials are only needed")
	fmt.Fprintln(w, "for posts hidden from anonymous users by the default blacklist.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Log in at https://e621.net")
	fmt.Fprintf(w, "  2. Open your account page (%s)\n", APIKeyURL)
	fmt.Fprintln(w, "  3. Choose \"Manage API Access\" and generate a key")
	fmt.Fprintln(w, "  4. Enter your username and the key below")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The key is stored in the system keyring when available, otherwise in")
	fmt.Fprintln(w, "an encrypted file in the e6dl config directory. E6DL_USERNAME and")
	fmt.Fprintln(w, "E6DL_API_KEY take precedence when set.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
}
