package position

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// dataProviderABIJSON and priceOracleABIJSON are the minimal ABI surface
// the Position Reader calls. Full ABI decoding of the lending protocol's
// contracts is an external collaborator per this system's scope; this repo
// only needs the three read functions below, so it carries their signatures
// directly instead of depending on a generated-binding package.
const dataProviderABIJSON = `[
	{"name":"getUserReserveData","type":"function","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"},{"name":"user","type":"address"}],
	 "outputs":[
		{"name":"currentATokenBalance","type":"uint256"},
		{"name":"currentStableDebt","type":"uint256"},
		{"name":"currentVariableDebt","type":"uint256"},
		{"name":"principalStableDebt","type":"uint256"},
		{"name":"scaledVariableDebt","type":"uint256"},
		{"name":"stableBorrowRate","type":"uint256"},
		{"name":"liquidityRate","type":"uint256"},
		{"name":"stableRateLastUpdated","type":"uint40"},
		{"name":"usageAsCollateralEnabled","type":"bool"}
	 ]},
	{"name":"getReserveConfigurationData","type":"function","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"}],
	 "outputs":[
		{"name":"decimals","type":"uint256"},
		{"name":"ltv","type":"uint256"},
		{"name":"liquidationThreshold","type":"uint256"},
		{"name":"liquidationBonus","type":"uint256"},
		{"name":"reserveFactor","type":"uint256"},
		{"name":"usageAsCollateralEnabled","type":"bool"},
		{"name":"borrowingEnabled","type":"bool"},
		{"name":"stableBorrowRateEnabled","type":"bool"},
		{"name":"isActive","type":"bool"},
		{"name":"isFrozen","type":"bool"}
	 ]}
]`

const priceOracleABIJSON = `[
	{"name":"getAssetPrice","type":"function","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"}],
	 "outputs":[{"name":"price","type":"uint256"}]}
]`

// LoadContractABIs parses the built-in data-provider and price-oracle ABI
// fragments this package depends on.
func LoadContractABIs() (dataProviderABI, priceOracleABI *abi.ABI, err error) {
	dp, err := abi.JSON(strings.NewReader(dataProviderABIJSON))
	if err != nil {
		return nil, nil, err
	}
	po, err := abi.JSON(strings.NewReader(priceOracleABIJSON))
	if err != nil {
		return nil, nil, err
	}
	return &dp, &po, nil
}
