package saleor

const moneyFields = `amount currency`

const addressFragment = `
fragment AddressFragment on Address {
  firstName
  lastName
  companyName
  streetAddress1
  streetAddress2
  city
  countryArea
  postalCode
  phone
  country { code country }
}`

const checkoutFragment = `
fragment CheckoutFragment on Checkout {
  id
  email
  isShippingRequired
  channel { slug }
  billingAddress { ...AddressFragment }
  shippingAddress { ...AddressFragment }
  lines {
    id
    quantity
    totalPrice { gross { ` + moneyFields + ` } }
    variant { id name product { name } }
  }
  subtotalPrice { gross { ` + moneyFields + ` } }
  shippingPrice { gross { ` + moneyFields + ` } }
  totalPrice { gross { ` + moneyFields + ` } }
}` + addressFragment

const checkoutQuery = `
query checkout($id: ID!) {
  checkout(id: $id) { ...CheckoutFragment }
}` + checkoutFragment

const meQuery = `
query me {
  me { id email }
}`

const checkoutEmailUpdateMutation = `
mutation checkoutEmailUpdate($id: ID!, $email: String!) {
  checkoutEmailUpdate(id: $id, email: $email) {
    checkout { ...CheckoutFragment }
    errors { field code message }
  }
}` + checkoutFragment

const checkoutBillingAddressUpdateMutation = `
mutation checkoutBillingAddressUpdate($id: ID!, $address: AddressInput!) {
  checkoutBillingAddressUpdate(id: $id, billingAddress: $address) {
    checkout { ...CheckoutFragment }
    errors { field code message }
  }
}` + checkoutFragment

const checkoutShippingAddressUpdateMutation = `
mutation checkoutShippingAddressUpdate($id: ID!, $address: AddressInput!) {
  checkoutShippingAddressUpdate(id: $id, shippingAddress: $address) {
    checkout { ...CheckoutFragment }
    errors { field code message }
  }
}` + checkoutFragment

const checkoutLinesUpdateMutation = `
mutation checkoutLinesUpdate($id: ID!, $lines: [CheckoutLineUpdateInput!]!) {
  checkoutLinesUpdate(id: $id, lines: $lines) {
    checkout { ...CheckoutFragment }
    errors { field code message }
  }
}` + checkoutFragment

const transactionInitializeMutation = `
mutation transactionInitialize($checkoutId: ID!, $paymentGateway: PaymentGatewayToInitialize!) {
  transactionInitialize(id: $checkoutId, paymentGateway: $paymentGateway) {
    transaction { id }
    transactionEvent { pspReference type message }
    data
    errors { field code message }
  }
}`

const checkoutCompleteMutation = `
mutation checkoutComplete($checkoutId: ID!) {
  checkoutComplete(id: $checkoutId) {
    order { id number }
    errors { field code message }
  }
}`
