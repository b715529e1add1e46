package entity

// ClientLoginData identifies the device or companion app calling the API.
type ClientLoginData struct {
	ID   string
	Name string
}
