package models

type Balance struct {
	Address string `json:"address"`
	Balance Amount `json:"balance"`
}
