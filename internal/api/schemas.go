package api

const createCustomerSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["full_name", "email"],
  "properties": {
    "full_name": {"type": "string", "minLength": 1, "maxLength": 255},
    "email": {"type": "string", "minLength": 3, "maxLength": 255, "pattern": "^[^@\\s]+@[^@\\s]+$"},
    "phone": {"type": "string", "maxLength": 50},
    "address": {"type": "string", "maxLength": 512},
    "is_active": {"type": "boolean"}
  }
}`

const createAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["customer_id", "account_type", "currency"],
  "properties": {
    "customer_id": {"type": "string", "minLength": 1},
    "account_type": {"type": "string", "enum": ["checking", "savings"]},
    "balance": {"type": "number", "minimum": 0},
    "currency": {"type": "string", "enum": ["USD", "EUR", "GBP", "INR", "JPY", "AUD"]},
    "nickname": {"type": "string", "maxLength": 255}
  }
}`

const moveMoneySchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["amount"],
  "properties": {
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "note": {"type": "string", "maxLength": 512}
  }
}`

const transferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["from_account_id", "to_account_id", "amount"],
  "properties": {
    "from_account_id": {"type": "string", "minLength": 1},
    "to_account_id": {"type": "string", "minLength": 1},
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "note": {"type": "string", "maxLength": 512}
  }
}`
