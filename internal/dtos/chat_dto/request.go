package chat_dto

import (
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type AssignAdminRequest struct {
	AdminID string `json:"admin_id" validate:"required,uuid"`
}

func ObjectIDValidator(fl validator.FieldLevel) bool {
	return IsObjectIDHex(fl.Field().String())
}

func IsObjectIDHex(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}
