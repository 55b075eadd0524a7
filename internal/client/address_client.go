package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/pkg/httpclient"
)

// AddressClient обращается к Address service (C1): получение адреса доставки.
// Сервис является единственным источником истины об адресах — здесь только
// чтение (§3 Address).
type AddressClient struct {
	http *httpclient.Client
}

func NewAddressClient(c *httpclient.Client) *AddressClient {
	return &AddressClient{http: c}
}

// GetAddress получает адрес по идентификатору (GET /address/{id}).
// 404/403 транслируются в AddressNotFound/AddressForbidden (§7).
func (c *AddressClient) GetAddress(ctx context.Context, principal domain.Principal, addressID string) (domain.Address, error) {
	headers, err := authHeaders(principal)
	if err != nil {
		return domain.Address{}, err
	}

	status, body, err := doCall(ctx, c.http, http.MethodGet, "/address/"+addressID, nil, headers)
	if err != nil {
		return domain.Address{}, err
	}

	switch {
	case status == http.StatusNotFound:
		return domain.Address{}, domain.NewAddressNotFound(addressID)
	case status == http.StatusForbidden:
		return domain.Address{}, domain.NewAddressForbidden(addressID)
	case status >= 400:
		return domain.Address{}, domain.NewUpstreamContractError("address", fmt.Errorf("address service вернул статус %d", status))
	}

	fields, err := decodeEnvelope(body)
	if err != nil {
		return domain.Address{}, domain.NewUpstreamContractError("address", err)
	}
	return parseAddress(fields)
}

func parseAddress(fields map[string]interface{}) (domain.Address, error) {
	id, err := requiredString(fields, "id", "id")
	if err != nil {
		return domain.Address{}, err
	}
	line1, err := requiredString(fields, "line1", "line1", "addressLine1")
	if err != nil {
		return domain.Address{}, err
	}
	city, err := requiredString(fields, "city", "city")
	if err != nil {
		return domain.Address{}, err
	}
	country, err := requiredString(fields, "country", "country")
	if err != nil {
		return domain.Address{}, err
	}
	state, _ := fieldString(fields, "state")
	postcode, _ := fieldString(fields, "postcode", "postalCode", "zip")

	return domain.Address{
		ID:       id,
		Line1:    line1,
		City:     city,
		State:    state,
		Postcode: postcode,
		Country:  country,
	}, nil
}
