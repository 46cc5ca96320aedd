package gmb

import (
	"context"
	"fmt"

	"google.golang.org/api/mybusinessaccountmanagement/v1"
	"google.golang.org/api/mybusinessbusinessinformation/v1"
	"google.golang.org/api/option"
)

// AccountLocation is one location reachable with the connecting user's grant.
type AccountLocation struct {
	AccountName  string
	LocationName string
	Title        string
}

// ListAccountLocations walks every account of the grant and its locations.
// opts must carry the credentials, e.g. option.WithTokenSource.
func ListAccountLocations(ctx context.Context, opts ...option.ClientOption) ([]AccountLocation, error) {
	accountSvc, err := mybusinessaccountmanagement.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("account management client: %w", err)
	}
	infoSvc, err := mybusinessbusinessinformation.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("business information client: %w", err)
	}

	var accounts []*mybusinessaccountmanagement.Account
	err = accountSvc.Accounts.List().Pages(ctx, func(resp *mybusinessaccountmanagement.ListAccountsResponse) error {
		accounts = append(accounts, resp.Accounts...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var out []AccountLocation
	for _, acc := range accounts {
		err := infoSvc.Accounts.Locations.List(acc.Name).
			ReadMask("name,title").
			PageSize(100).
			Pages(ctx, func(resp *mybusinessbusinessinformation.ListLocationsResponse) error {
				for _, loc := range resp.Locations {
					out = append(out, AccountLocation{
						AccountName:  acc.Name,
						LocationName: loc.Name,
						Title:        loc.Title,
					})
				}
				return nil
			})
		if err != nil {
			return nil, fmt.Errorf("list locations of %s: %w", acc.Name, err)
		}
	}
	return out, nil
}
