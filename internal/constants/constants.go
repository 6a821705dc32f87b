package constants

//CollectionUsers Name of the collection.
const CollectionUsers = "users"

//CollectionOrganizations Name of the collection.
const CollectionOrganizations = "organizations"

//CollectionAdmins Name of the collection.
const CollectionAdmins = "admins"

//CollectionAdoptions Name of the collection.
const CollectionAdoptions = "adoptions"

//CollectionAdoptionApplications Name of the collection.
const CollectionAdoptionApplications = "adoptionApplications"

//CollectionDonationRequests Name of the collection.
const CollectionDonationRequests = "donation_requests"

//CollectionReports Name of the collection.
const CollectionReports = "reports"

//CollectionSubscriptions Name of the collection.
const CollectionSubscriptions = "subscriptions"

//CollectionNotifications Name of the collection of citizen notifications.
const CollectionNotifications = "notifications"

//CollectionOrgNotifications Name of the collection of organization notifications.
const CollectionOrgNotifications = "orgNotifications"

//CollectionAuditLog Name of the Firestore collection.
const CollectionAuditLog = "auditLog"

//SubCollectionTransactions Name of the nested collection.
const SubCollectionTransactions = "transactions"

//SubCollectionImpactReports Name of the nested collection.
const SubCollectionImpactReports = "impactReports"

//SubCollectionUpdates Name of the nested collection.
const SubCollectionUpdates = "updates"

//SubCollectionMessages Name of the nested collection.
const SubCollectionMessages = "messages"

//SubCollectionEntries Name of the nested collection.
const SubCollectionEntries = "entries"

//FieldUnreadCount Name of the unread counter sibling of entries.
const FieldUnreadCount = "unreadCount"

//FieldSubscription Name of the subscription node of an organization.
const FieldSubscription = "subscription"

//TopicStatusChanged Name of the topic.
const TopicStatusChanged = "status-changed"

//DbStatusCountersPrefix Prefix of status change counters in Realtime DB.
const DbStatusCountersPrefix = "statusCounters/"

//StoragePetImagesPrefix Prefix of adoption listing images.
const StoragePetImagesPrefix = "pet_images/"

//StorageAdminProfilesPrefix Prefix of admin profile images.
const StorageAdminProfilesPrefix = "admin_profiles/"

//StorageOrgProfilesPrefix Prefix of organization profile images.
const StorageOrgProfilesPrefix = "profile_images/organizations/"

//PageEntry Page to redirect unauthenticated sessions to.
const PageEntry = "index.html"

//PageHome Landing page of admins and citizens.
const PageHome = "home.html"

//PageOrganizationDashboard Landing page of organizations.
const PageOrganizationDashboard = "organizationDashboard.html"

//SecretSchedulerAPIKey Name of the secret guarding scheduled endpoints.
const SecretSchedulerAPIKey = "scheduler-apikey"

//Day length in milliseconds.
const Day int64 = 86400000
